package models

// AddressCandidate is a provisional address and coordinate pairing awaiting confirmation.
// It is produced by the resolver and consumed right away; it is never persisted.
type AddressCandidate struct {
	Address     string      `json:"address"`
	Coordinates Coordinates `json:"coordinates"`
}
