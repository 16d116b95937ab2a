package natssub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/result-ingest/handler"
	"github.com/radieske/match-escrow/pkg/contracts/events"
)

type fakeMsg struct {
	data []byte
	got  string
}

func (m *fakeMsg) Data() []byte { return m.data }
func (m *fakeMsg) Ack() error   { m.got = "ack"; return nil }
func (m *fakeMsg) Nak() error   { m.got = "nak"; return nil }
func (m *fakeMsg) Term() error  { m.got = "term"; return nil }

type stubResolver struct{ err error }

func (s stubResolver) Handle(context.Context, events.MatchCompleted) (handler.Outcome, error) {
	if s.err != nil {
		return "", s.err
	}
	return handler.OutcomeReplay, nil
}

func TestProcessAckDecisions(t *testing.T) {
	body := []byte(`{"matchId":"m1","winner":1,"proofRef":"p"}`)
	cases := []struct {
		name string
		data []byte
		err  error
		want string
	}{
		{"applied", body, nil, "ack"},
		{"conflict", body, domain.ErrConflict, "nak"},
		{"bad outcome", body, domain.ErrInvalidOutcome, "term"},
		{"bad payload", []byte("{"), nil, "term"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var outcomes []handler.Outcome
			s := NewSubscriber(nil, stubResolver{err: tc.err}, zap.NewNop())
			s.OnHandled = func(o handler.Outcome) { outcomes = append(outcomes, o) }
			msg := &fakeMsg{data: tc.data}
			s.Process(context.Background(), msg)
			assert.Equal(t, tc.want, msg.got)
			if tc.want == "ack" {
				assert.Equal(t, []handler.Outcome{handler.OutcomeReplay}, outcomes)
			}
		})
	}
}
