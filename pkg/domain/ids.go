package domain

import (
	"github.com/google/uuid"

	dErrors "regbook/pkg/domain-errors"
)

// Typed UUID identifiers. Distinct types keep an AssetID from ever being
// passed where a UserID is expected; the compiler enforces it.
//
// Construct via the ParseX functions at trust boundaries; direct casting
// bypasses validation.
type (
	// AssetID identifies a registered vehicle record.
	AssetID uuid.UUID

	// UserID identifies an authenticated actor (owner, recipient, claimant).
	UserID uuid.UUID

	// TransferID identifies an owner-initiated transfer request.
	TransferID uuid.UUID

	// ClaimID identifies a claimant-initiated ownership claim.
	ClaimID uuid.UUID
)

func NewAssetID() AssetID       { return AssetID(uuid.New()) }
func NewUserID() UserID         { return UserID(uuid.New()) }
func NewTransferID() TransferID { return TransferID(uuid.New()) }
func NewClaimID() ClaimID       { return ClaimID(uuid.New()) }

func (id AssetID) String() string    { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id TransferID) String() string { return uuid.UUID(id).String() }
func (id ClaimID) String() string    { return uuid.UUID(id).String() }

func (id AssetID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id TransferID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ClaimID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// Text marshalling renders IDs as canonical UUID strings, so JSON bodies and
// event payloads carry "5f43..." rather than raw byte arrays. Unmarshalling
// accepts empty and nil-UUID values as the zero ID (optional payload fields
// marshal the zero value); trust boundaries still validate via ParseX.

func (id AssetID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id TransferID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ClaimID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

func (id *AssetID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b)
	if err != nil {
		return err
	}
	*id = AssetID(u)
	return nil
}

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b)
	if err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id *TransferID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b)
	if err != nil {
		return err
	}
	*id = TransferID(u)
	return nil
}

func (id *ClaimID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b)
	if err != nil {
		return err
	}
	*id = ClaimID(u)
	return nil
}

func unmarshalUUID(b []byte) (uuid.UUID, error) {
	if len(b) == 0 {
		return uuid.Nil, nil
	}
	u, err := uuid.Parse(string(b))
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	return u, nil
}

// ParseAssetID constructs an AssetID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the
// nil UUID.
func ParseAssetID(s string) (AssetID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AssetID{}, err
	}
	return AssetID(u), nil
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseTransferID constructs a TransferID from external input.
func ParseTransferID(s string) (TransferID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return TransferID{}, err
	}
	return TransferID(u), nil
}

// ParseClaimID constructs a ClaimID from external input.
func ParseClaimID(s string) (ClaimID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ClaimID{}, err
	}
	return ClaimID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}
