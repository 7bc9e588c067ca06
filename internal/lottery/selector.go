package lottery

import (
	"crypto/sha256"
	"encoding/binary"
)

// Selector escolhe o índice do vencedor dentro da lista de participantes.
// Precisa ser determinístico para a mesma lista e a mesma seed.
type Selector interface {
	Select(participants []Participant, seed []byte) (int, error)
}

// SelectorFunc adapta uma função comum para Selector
type SelectorFunc func(participants []Participant, seed []byte) (int, error)

func (f SelectorFunc) Select(participants []Participant, seed []byte) (int, error) {
	return f(participants, seed)
}

// HashSelector sorteia com SHA-256 sobre a seed e a sequência ordenada de participantes.
// Qualquer pessoa com a mesma seed e a mesma lista consegue refazer o sorteio.
func HashSelector() Selector {
	return SelectorFunc(func(participants []Participant, seed []byte) (int, error) {
		if len(participants) == 0 {
			return 0, ErrInvalidSelection
		}
		h := sha256.New()
		h.Write(seed)
		var buf [8]byte
		for _, p := range participants {
			binary.BigEndian.PutUint64(buf[:], uint64(len(p.Address)))
			h.Write(buf[:])
			h.Write([]byte(p.Address))
			binary.BigEndian.PutUint64(buf[:], uint64(p.Amount))
			h.Write(buf[:])
		}
		sum := h.Sum(nil)
		n := binary.BigEndian.Uint64(sum[:8])
		return int(n % uint64(len(participants))), nil
	})
}

// roundSeed concatena a seed configurada com o número da rodada
func roundSeed(base []byte, roundNo uint64) []byte {
	out := make([]byte, len(base)+8)
	copy(out, base)
	binary.BigEndian.PutUint64(out[len(base):], roundNo)
	return out
}
