package wire

import "time"

// Field numbers below are the wire contract of ecsign.v1 and must not be
// reused once published.

// KeyMetadata describes a provisioned key. It never carries key material.
type KeyMetadata struct {
	KeyID       string
	Algorithm   string
	Status      string
	Fingerprint string
	CreatedAt   time.Time
	RotatedAt   time.Time
	Labels      map[string]string
}

func (m *KeyMetadata) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.KeyID)
	e.string(2, m.Algorithm)
	e.string(3, m.Status)
	e.string(4, m.Fingerprint)
	e.time(5, m.CreatedAt)
	e.time(6, m.RotatedAt)
	e.stringMap(7, m.Labels)
	return e.result()
}

func (m *KeyMetadata) UnmarshalWire(b []byte) error {
	*m = KeyMetadata{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.KeyID, err = f.str()
		case 2:
			m.Algorithm, err = f.str()
		case 3:
			m.Status, err = f.str()
		case 4:
			m.Fingerprint, err = f.str()
		case 5:
			m.CreatedAt, err = f.time()
		case 6:
			m.RotatedAt, err = f.time()
		case 7:
			err = f.mapEntry(&m.Labels)
		}
		return err
	})
}

type GenerateKeyRequest struct {
	Algorithm string
	Labels    map[string]string
}

func (m *GenerateKeyRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.Algorithm)
	e.stringMap(2, m.Labels)
	return e.result()
}

func (m *GenerateKeyRequest) UnmarshalWire(b []byte) error {
	*m = GenerateKeyRequest{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Algorithm, err = f.str()
		case 2:
			err = f.mapEntry(&m.Labels)
		}
		return err
	})
}

// KeyResponse answers GenerateKey, ImportKey and DeactivateKey.
type KeyResponse struct {
	Metadata *KeyMetadata
}

func (m *KeyResponse) MarshalWire() ([]byte, error) {
	var e encoder
	if m.Metadata != nil {
		e.message(1, m.Metadata)
	}
	return e.result()
}

func (m *KeyResponse) UnmarshalWire(b []byte) error {
	*m = KeyResponse{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Metadata = new(KeyMetadata)
			return f.message(m.Metadata)
		}
		return nil
	})
}

// ImportKeyRequest carries a PKCS#8 DER private key.
type ImportKeyRequest struct {
	PrivateKey []byte
	Algorithm  string
	Labels     map[string]string
}

func (m *ImportKeyRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.bytes(1, m.PrivateKey)
	e.string(2, m.Algorithm)
	e.stringMap(3, m.Labels)
	return e.result()
}

func (m *ImportKeyRequest) UnmarshalWire(b []byte) error {
	*m = ImportKeyRequest{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.PrivateKey, err = f.bytes()
		case 2:
			m.Algorithm, err = f.str()
		case 3:
			err = f.mapEntry(&m.Labels)
		}
		return err
	})
}

// KeyRequest names a single key: GetPublicKey, RotateKey, DeactivateKey.
type KeyRequest struct {
	KeyID string
	// Format is "spki" (default) or "uncompressed"; only GetPublicKey reads it.
	Format string
}

func (m *KeyRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.KeyID)
	e.string(2, m.Format)
	return e.result()
}

func (m *KeyRequest) UnmarshalWire(b []byte) error {
	*m = KeyRequest{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.KeyID, err = f.str()
		case 2:
			m.Format, err = f.str()
		}
		return err
	})
}

type GetPublicKeyResponse struct {
	KeyID     string
	PublicKey []byte
	Algorithm string
	Format    string
}

func (m *GetPublicKeyResponse) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.KeyID)
	e.bytes(2, m.PublicKey)
	e.string(3, m.Algorithm)
	e.string(4, m.Format)
	return e.result()
}

func (m *GetPublicKeyResponse) UnmarshalWire(b []byte) error {
	*m = GetPublicKeyResponse{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.KeyID, err = f.str()
		case 2:
			m.PublicKey, err = f.bytes()
		case 3:
			m.Algorithm, err = f.str()
		case 4:
			m.Format, err = f.str()
		}
		return err
	})
}

type ListKeysRequest struct {
	StatusFilter string
}

func (m *ListKeysRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.StatusFilter)
	return e.result()
}

func (m *ListKeysRequest) UnmarshalWire(b []byte) error {
	*m = ListKeysRequest{}
	return walk(b, func(f field) (err error) {
		if f.num == 1 {
			m.StatusFilter, err = f.str()
		}
		return err
	})
}

type ListKeysResponse struct {
	Keys []*KeyMetadata
}

func (m *ListKeysResponse) MarshalWire() ([]byte, error) {
	var e encoder
	for _, k := range m.Keys {
		e.message(1, k)
	}
	return e.result()
}

func (m *ListKeysResponse) UnmarshalWire(b []byte) error {
	*m = ListKeysResponse{}
	return walk(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		k := new(KeyMetadata)
		if err := f.message(k); err != nil {
			return err
		}
		m.Keys = append(m.Keys, k)
		return nil
	})
}

type RotateKeyResponse struct {
	OldKey *KeyMetadata
	NewKey *KeyMetadata
}

func (m *RotateKeyResponse) MarshalWire() ([]byte, error) {
	var e encoder
	if m.OldKey != nil {
		e.message(1, m.OldKey)
	}
	if m.NewKey != nil {
		e.message(2, m.NewKey)
	}
	return e.result()
}

func (m *RotateKeyResponse) UnmarshalWire(b []byte) error {
	*m = RotateKeyResponse{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.OldKey = new(KeyMetadata)
			return f.message(m.OldKey)
		case 2:
			m.NewKey = new(KeyMetadata)
			return f.message(m.NewKey)
		}
		return nil
	})
}

type SignRequest struct {
	KeyID string
	Data  []byte
}

func (m *SignRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.KeyID)
	e.bytes(2, m.Data)
	return e.result()
}

func (m *SignRequest) UnmarshalWire(b []byte) error {
	*m = SignRequest{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.KeyID, err = f.str()
		case 2:
			m.Data, err = f.bytes()
		}
		return err
	})
}

// SignResponse carries a DER signature and the algorithm it was made under.
type SignResponse struct {
	KeyID     string
	Signature []byte
	Algorithm string
}

func (m *SignResponse) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.KeyID)
	e.bytes(2, m.Signature)
	e.string(3, m.Algorithm)
	return e.result()
}

func (m *SignResponse) UnmarshalWire(b []byte) error {
	*m = SignResponse{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.KeyID, err = f.str()
		case 2:
			m.Signature, err = f.bytes()
		case 3:
			m.Algorithm, err = f.str()
		}
		return err
	})
}

type BatchSignRequest struct {
	KeyID string
	Data  [][]byte
}

func (m *BatchSignRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.KeyID)
	e.repeatedBytes(2, m.Data)
	return e.result()
}

func (m *BatchSignRequest) UnmarshalWire(b []byte) error {
	*m = BatchSignRequest{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			var err error
			m.KeyID, err = f.str()
			return err
		case 2:
			data, err := f.bytes()
			if err != nil {
				return err
			}
			if data == nil {
				data = []byte{}
			}
			m.Data = append(m.Data, data)
		}
		return nil
	})
}

// SignResult is one BatchSign outcome; exactly one field is set.
type SignResult struct {
	Signature []byte
	Error     string
}

func (m *SignResult) MarshalWire() ([]byte, error) {
	var e encoder
	e.bytes(1, m.Signature)
	e.string(2, m.Error)
	return e.result()
}

func (m *SignResult) UnmarshalWire(b []byte) error {
	*m = SignResult{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Signature, err = f.bytes()
		case 2:
			m.Error, err = f.str()
		}
		return err
	})
}

type BatchSignResponse struct {
	Results   []*SignResult
	Algorithm string
}

func (m *BatchSignResponse) MarshalWire() ([]byte, error) {
	var e encoder
	for _, r := range m.Results {
		e.message(1, r)
	}
	e.string(2, m.Algorithm)
	return e.result()
}

func (m *BatchSignResponse) UnmarshalWire(b []byte) error {
	*m = BatchSignResponse{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			r := new(SignResult)
			if err := f.message(r); err != nil {
				return err
			}
			m.Results = append(m.Results, r)
		case 2:
			var err error
			m.Algorithm, err = f.str()
			return err
		}
		return nil
	})
}

// VerifyRequest names the verification key either by KeyID (a stored key)
// or by PublicKey bytes (SPKI or uncompressed point). KeyID wins when both
// are set.
type VerifyRequest struct {
	KeyID     string
	PublicKey []byte
	Data      []byte
	Signature []byte
	Algorithm string
}

func (m *VerifyRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.KeyID)
	e.bytes(2, m.PublicKey)
	e.bytes(3, m.Data)
	e.bytes(4, m.Signature)
	e.string(5, m.Algorithm)
	return e.result()
}

func (m *VerifyRequest) UnmarshalWire(b []byte) error {
	*m = VerifyRequest{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.KeyID, err = f.str()
		case 2:
			m.PublicKey, err = f.bytes()
		case 3:
			m.Data, err = f.bytes()
		case 4:
			m.Signature, err = f.bytes()
		case 5:
			m.Algorithm, err = f.str()
		}
		return err
	})
}

type VerifyResponse struct {
	Valid     bool
	Algorithm string
}

func (m *VerifyResponse) MarshalWire() ([]byte, error) {
	var e encoder
	e.bool(1, m.Valid)
	e.string(2, m.Algorithm)
	return e.result()
}

func (m *VerifyResponse) UnmarshalWire(b []byte) error {
	*m = VerifyResponse{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			v, err := f.uint()
			m.Valid = v != 0
			return err
		case 2:
			var err error
			m.Algorithm, err = f.str()
			return err
		}
		return nil
	})
}

type QueryAuditRequest struct {
	KeyID     string
	Operation string
	StartTime time.Time
	EndTime   time.Time
	Limit     uint32
}

func (m *QueryAuditRequest) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.KeyID)
	e.string(2, m.Operation)
	e.time(3, m.StartTime)
	e.time(4, m.EndTime)
	e.uint(5, uint64(m.Limit))
	return e.result()
}

func (m *QueryAuditRequest) UnmarshalWire(b []byte) error {
	*m = QueryAuditRequest{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.KeyID, err = f.str()
		case 2:
			m.Operation, err = f.str()
		case 3:
			m.StartTime, err = f.time()
		case 4:
			m.EndTime, err = f.time()
		case 5:
			var v uint64
			v, err = f.uint()
			m.Limit = uint32(v)
		}
		return err
	})
}

type AuditEntry struct {
	ID          string
	Timestamp   time.Time
	Operation   string
	KeyID       string
	Status      string
	Algorithm   string
	Verdict     string
	PeerAddress string
	Metadata    map[string]string
}

func (m *AuditEntry) MarshalWire() ([]byte, error) {
	var e encoder
	e.string(1, m.ID)
	e.time(2, m.Timestamp)
	e.string(3, m.Operation)
	e.string(4, m.KeyID)
	e.string(5, m.Status)
	e.string(6, m.Algorithm)
	e.string(7, m.Verdict)
	e.string(8, m.PeerAddress)
	e.stringMap(9, m.Metadata)
	return e.result()
}

func (m *AuditEntry) UnmarshalWire(b []byte) error {
	*m = AuditEntry{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.ID, err = f.str()
		case 2:
			m.Timestamp, err = f.time()
		case 3:
			m.Operation, err = f.str()
		case 4:
			m.KeyID, err = f.str()
		case 5:
			m.Status, err = f.str()
		case 6:
			m.Algorithm, err = f.str()
		case 7:
			m.Verdict, err = f.str()
		case 8:
			m.PeerAddress, err = f.str()
		case 9:
			err = f.mapEntry(&m.Metadata)
		}
		return err
	})
}

type QueryAuditResponse struct {
	Entries []*AuditEntry
}

func (m *QueryAuditResponse) MarshalWire() ([]byte, error) {
	var e encoder
	for _, entry := range m.Entries {
		e.message(1, entry)
	}
	return e.result()
}

func (m *QueryAuditResponse) UnmarshalWire(b []byte) error {
	*m = QueryAuditResponse{}
	return walk(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		entry := new(AuditEntry)
		if err := f.message(entry); err != nil {
			return err
		}
		m.Entries = append(m.Entries, entry)
		return nil
	})
}
