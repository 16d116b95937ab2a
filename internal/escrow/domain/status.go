package domain

type MatchStatus string

const (
	StatusCreated    MatchStatus = "CREATED"
	StatusOpen       MatchStatus = "OPEN"
	StatusInProgress MatchStatus = "IN_PROGRESS"
	StatusCompleted  MatchStatus = "COMPLETED"
	StatusFinalized  MatchStatus = "FINALIZED"
	StatusCancelled  MatchStatus = "CANCELLED"
)

// transições permitidas; qualquer outra é retrocesso ou salto
var transitions = map[MatchStatus][]MatchStatus{
	StatusCreated:    {StatusOpen, StatusCancelled},
	StatusOpen:       {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {StatusFinalized},
}

// CanTransition indica se from -> to é uma transição válida da máquina de estados.
func CanTransition(from, to MatchStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Settled indica que a partida já passou pela liquidação (imutável).
func (s MatchStatus) Settled() bool {
	return s == StatusFinalized || s == StatusCancelled
}

// Active indica que a partida ainda custodia fundos.
func (s MatchStatus) Active() bool { return !s.Settled() }
