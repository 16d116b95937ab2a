package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// Role separa os espaços de endereçamento derivados.
type Role string

const (
	RoleUser   Role = "user"
	RoleEscrow Role = "escrow"
)

// Address é um endereço determinístico usado apenas para lookup.
// Autorização nunca é inferida do endereço: sempre compara a identidade do chamador
// com o campo de autoridade armazenado.
type Address string

// DeriveAddress calcula hex(sha256(role || 0x00 || id)).
func DeriveAddress(id string, role Role) Address {
	h := sha256.New()
	h.Write([]byte(role))
	h.Write([]byte{0})
	h.Write([]byte(id))
	return Address(hex.EncodeToString(h.Sum(nil)))
}

func UserAddress(owner string) Address     { return DeriveAddress(owner, RoleUser) }
func EscrowAddress(matchID string) Address { return DeriveAddress(matchID, RoleEscrow) }
