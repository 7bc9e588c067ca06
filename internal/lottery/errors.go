package lottery

import "errors"

// Erros retornados pelas operações da rodada. Use errors.Is para comparar,
// pois normalmente chegam embrulhados com contexto.
var (
	ErrUnauthorized     = errors.New("only admin")
	ErrInvalidState     = errors.New("current state does not allow this")
	ErrWrongAmount      = errors.New("can only bet exactly the bet size")
	ErrTransferFailure  = errors.New("transfer failed")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidSelection = errors.New("winner selection out of range")
)
