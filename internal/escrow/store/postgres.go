package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/match-escrow/internal/escrow/domain"
)

// Postgres implementa o Store sobre database/sql + lib/pq.
// Valores monetários ficam em NUMERIC(20,0) e trafegam como texto.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const uniqueViolation = "23505"

func (p *Postgres) Platform(ctx context.Context) (domain.Platform, error) {
	var (
		pl                           domain.Platform
		minS, maxS, tm, tb, tv, tbal string
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT authority, treasury, oracle, fee_bps, min_stake, max_stake,
		       total_matches, total_bets, total_volume, treasury_balance,
		       version, created_at, updated_at
		FROM platform WHERE id = 1`).Scan(
		&pl.Authority, &pl.Treasury, &pl.Oracle, &pl.FeeBps, &minS, &maxS,
		&tm, &tb, &tv, &tbal, &pl.Version, &pl.CreatedAt, &pl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Platform{}, domain.ErrPlatformNotInitialized
	}
	if err != nil {
		return domain.Platform{}, fmt.Errorf("select platform: %w", err)
	}
	if err := parseAmounts(
		amt{minS, &pl.MinStake}, amt{maxS, &pl.MaxStake}, amt{tm, &pl.TotalMatches},
		amt{tb, &pl.TotalBets}, amt{tv, &pl.TotalVolume}, amt{tbal, &pl.TreasuryBalance},
	); err != nil {
		return domain.Platform{}, err
	}
	return pl, nil
}

func (p *Postgres) Account(ctx context.Context, addr domain.Address) (domain.UserAccount, error) {
	var (
		a              domain.UserAccount
		capS, wag, won string
		lastW          sql.NullTime
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT address, owner, kyc_tier, region, blacklisted, stake_cap,
		       total_wagered, total_won, last_withdrawal_at, version, created_at, updated_at
		FROM accounts WHERE address = $1`, string(addr)).Scan(
		&a.Address, &a.Owner, &a.KYCTier, &a.Region, &a.Blacklisted, &capS,
		&wag, &won, &lastW, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserAccount{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("select account: %w", err)
	}
	a.LastWithdrawalAt = lastW.Time
	if err := parseAmounts(amt{capS, &a.StakeCap}, amt{wag, &a.TotalWagered}, amt{won, &a.TotalWon}); err != nil {
		return domain.UserAccount{}, err
	}
	return a, nil
}

func (p *Postgres) Match(ctx context.Context, id string) (domain.Match, error) {
	return readMatch(ctx, p.db, id)
}

// querier é satisfeito por *sql.DB e *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readMatch(ctx context.Context, q querier, id string) (domain.Match, error) {
	var (
		m                                        domain.Match
		pools                                    []string
		totalBets                                string
		closeAt, startedAt, completedAt, settled sql.NullTime
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, match_type, status, pools, total_bets, creator, winner, proof_ref,
		       bets_close_at, created_at, started_at, completed_at, settled_at, version
		FROM matches WHERE id = $1`, id).Scan(
		&m.ID, &m.Type, &m.Status, pq.Array(&pools), &totalBets, &m.Creator, &m.Winner, &m.ProofRef,
		&closeAt, &m.CreatedAt, &startedAt, &completedAt, &settled, &m.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("select match: %w", err)
	}
	m.Pools = make([]uint64, len(pools))
	for i, s := range pools {
		if err := parseAmounts(amt{s, &m.Pools[i]}); err != nil {
			return domain.Match{}, err
		}
	}
	if err := parseAmounts(amt{totalBets, &m.TotalBets}); err != nil {
		return domain.Match{}, err
	}
	m.BetsCloseAt, m.StartedAt, m.CompletedAt, m.SettledAt = closeAt.Time, startedAt.Time, completedAt.Time, settled.Time
	return m, nil
}

func (p *Postgres) Escrow(ctx context.Context, addr domain.Address) (domain.Escrow, error) {
	return readEscrow(ctx, p.db, addr)
}

func readEscrow(ctx context.Context, q querier, addr domain.Address) (domain.Escrow, error) {
	var (
		e   domain.Escrow
		bal string
	)
	err := q.QueryRowContext(ctx, `
		SELECT address, match_id, balance, locked, version FROM escrows WHERE address = $1`,
		string(addr)).Scan(&e.Address, &e.MatchID, &bal, &e.Locked, &e.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Escrow{}, domain.ErrEscrowNotFound
	}
	if err != nil {
		return domain.Escrow{}, fmt.Errorf("select escrow: %w", err)
	}
	if err := parseAmounts(amt{bal, &e.Balance}); err != nil {
		return domain.Escrow{}, err
	}
	return e, nil
}

const betColumns = `id, bettor, match_id, outcome, stake, status, payout, placed_at, settled_at, version`

type rowScanner interface{ Scan(dest ...any) error }

func scanBet(r rowScanner) (domain.Bet, error) {
	var (
		b       domain.Bet
		stake   string
		payout  sql.NullString
		settled sql.NullTime
	)
	if err := r.Scan(&b.ID, &b.Bettor, &b.MatchID, &b.Outcome, &stake, &b.Status, &payout,
		&b.PlacedAt, &settled, &b.Version); err != nil {
		return domain.Bet{}, err
	}
	if err := parseAmounts(amt{stake, &b.Stake}); err != nil {
		return domain.Bet{}, err
	}
	if payout.Valid {
		var v uint64
		if err := parseAmounts(amt{payout.String, &v}); err != nil {
			return domain.Bet{}, err
		}
		b.Payout = &v
	}
	b.SettledAt = settled.Time
	return b, nil
}

func (p *Postgres) Bet(ctx context.Context, id string) (domain.Bet, error) {
	b, err := scanBet(p.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bet{}, domain.ErrBetNotFound
	}
	if err != nil {
		return domain.Bet{}, fmt.Errorf("select bet: %w", err)
	}
	return b, nil
}

func (p *Postgres) BetsByMatch(ctx context.Context, matchID string) ([]domain.Bet, error) {
	return readBets(ctx, p.db, matchID)
}

func readBets(ctx context.Context, q querier, matchID string) ([]domain.Bet, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+betColumns+` FROM bets WHERE match_id = $1 ORDER BY seq`, matchID)
	if err != nil {
		return nil, fmt.Errorf("select bets: %w", err)
	}
	defer rows.Close()

	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bet: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// MatchState lê partida, escrow e apostas numa transação REPEATABLE READ
// somente leitura, então as três leituras enxergam o mesmo snapshot.
func (p *Postgres) MatchState(ctx context.Context, id string) (MatchState, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return MatchState{}, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	var st MatchState
	if st.Match, err = readMatch(ctx, tx, id); err != nil {
		return MatchState{}, err
	}
	if st.Escrow, err = readEscrow(ctx, tx, domain.EscrowAddress(id)); err != nil {
		return MatchState{}, err
	}
	if st.Bets, err = readBets(ctx, tx, id); err != nil {
		return MatchState{}, err
	}
	if err := tx.Commit(); err != nil {
		return MatchState{}, fmt.Errorf("commit snapshot tx: %w", err)
	}
	return st, nil
}

// Commit grava o ChangeSet numa única transação. Updates são guardados por
// "WHERE version = $n"; qualquer linha não afetada desfaz tudo com ErrConflict.
func (p *Postgres) Commit(ctx context.Context, cs *ChangeSet) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if cs.Platform != nil {
		if err := writePlatform(ctx, tx, cs.Platform); err != nil {
			return err
		}
	}
	for i := range cs.Accounts {
		if err := writeAccount(ctx, tx, &cs.Accounts[i]); err != nil {
			return err
		}
	}
	for i := range cs.Matches {
		if err := writeMatch(ctx, tx, &cs.Matches[i]); err != nil {
			return err
		}
	}
	for i := range cs.Escrows {
		if err := writeEscrow(ctx, tx, &cs.Escrows[i]); err != nil {
			return err
		}
	}
	for i := range cs.Bets {
		if err := writeBet(ctx, tx, &cs.Bets[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	cs.bumpVersions()
	return nil
}

func writePlatform(ctx context.Context, tx *sql.Tx, pl *domain.Platform) error {
	if pl.Version == 0 {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO platform (id, authority, treasury, oracle, fee_bps, min_stake, max_stake,
			    total_matches, total_bets, total_volume, treasury_balance, version, created_at, updated_at)
			VALUES (1,$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,1,$11,$12)`,
			pl.Authority, pl.Treasury, pl.Oracle, pl.FeeBps, num(pl.MinStake), num(pl.MaxStake),
			num(pl.TotalMatches), num(pl.TotalBets), num(pl.TotalVolume), num(pl.TreasuryBalance),
			pl.CreatedAt, pl.UpdatedAt)
		return mapInsertErr(err, domain.ErrPlatformExists, "insert platform")
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE platform SET authority=$1, treasury=$2, oracle=$3, fee_bps=$4, min_stake=$5, max_stake=$6,
		    total_matches=$7, total_bets=$8, total_volume=$9, treasury_balance=$10,
		    updated_at=$11, version = version + 1
		WHERE id = 1 AND version = $12`,
		pl.Authority, pl.Treasury, pl.Oracle, pl.FeeBps, num(pl.MinStake), num(pl.MaxStake),
		num(pl.TotalMatches), num(pl.TotalBets), num(pl.TotalVolume), num(pl.TreasuryBalance),
		pl.UpdatedAt, pl.Version)
	return checkUpdated(res, err, "update platform")
}

func writeAccount(ctx context.Context, tx *sql.Tx, a *domain.UserAccount) error {
	if a.Version == 0 {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (address, owner, kyc_tier, region, blacklisted, stake_cap,
			    total_wagered, total_won, last_withdrawal_at, version, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,1,$10,$11)`,
			string(a.Address), a.Owner, a.KYCTier, a.Region, a.Blacklisted, num(a.StakeCap),
			num(a.TotalWagered), num(a.TotalWon), nullTime(a.LastWithdrawalAt), a.CreatedAt, a.UpdatedAt)
		return mapInsertErr(err, domain.ErrAccountExists, "insert account")
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET kyc_tier=$1, region=$2, blacklisted=$3, stake_cap=$4,
		    total_wagered=$5, total_won=$6, last_withdrawal_at=$7, updated_at=$8, version = version + 1
		WHERE address = $9 AND version = $10`,
		a.KYCTier, a.Region, a.Blacklisted, num(a.StakeCap), num(a.TotalWagered), num(a.TotalWon),
		nullTime(a.LastWithdrawalAt), a.UpdatedAt, string(a.Address), a.Version)
	return checkUpdated(res, err, "update account")
}

func writeMatch(ctx context.Context, tx *sql.Tx, m *domain.Match) error {
	pools := make([]string, len(m.Pools))
	for i, v := range m.Pools {
		pools[i] = num(v)
	}
	if m.Version == 0 {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO matches (id, match_type, status, pools, total_bets, creator, winner, proof_ref,
			    bets_close_at, created_at, started_at, completed_at, settled_at, version)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,1)`,
			m.ID, string(m.Type), string(m.Status), pq.Array(pools), num(m.TotalBets), m.Creator,
			m.Winner, m.ProofRef, nullTime(m.BetsCloseAt), m.CreatedAt,
			nullTime(m.StartedAt), nullTime(m.CompletedAt), nullTime(m.SettledAt))
		return mapInsertErr(err, domain.ErrInvalidMatch, "insert match")
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE matches SET status=$1, pools=$2, total_bets=$3, winner=$4, proof_ref=$5,
		    started_at=$6, completed_at=$7, settled_at=$8, version = version + 1
		WHERE id = $9 AND version = $10`,
		string(m.Status), pq.Array(pools), num(m.TotalBets), m.Winner, m.ProofRef,
		nullTime(m.StartedAt), nullTime(m.CompletedAt), nullTime(m.SettledAt), m.ID, m.Version)
	return checkUpdated(res, err, "update match")
}

func writeEscrow(ctx context.Context, tx *sql.Tx, e *domain.Escrow) error {
	if e.Version == 0 {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO escrows (address, match_id, balance, locked, version) VALUES ($1,$2,$3,$4,1)`,
			string(e.Address), e.MatchID, num(e.Balance), e.Locked)
		return mapInsertErr(err, domain.ErrConflict, "insert escrow")
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE escrows SET balance=$1, locked=$2, version = version + 1
		WHERE address = $3 AND version = $4`,
		num(e.Balance), e.Locked, string(e.Address), e.Version)
	return checkUpdated(res, err, "update escrow")
}

func writeBet(ctx context.Context, tx *sql.Tx, b *domain.Bet) error {
	var payout any
	if b.Payout != nil {
		payout = num(*b.Payout)
	}
	if b.Version == 0 {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bets (id, bettor, match_id, outcome, stake, status, payout, placed_at, settled_at, version)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,1)`,
			b.ID, b.Bettor, b.MatchID, b.Outcome, num(b.Stake), string(b.Status), payout,
			b.PlacedAt, nullTime(b.SettledAt))
		return mapInsertErr(err, domain.ErrDuplicateBet, "insert bet")
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE bets SET status=$1, payout=$2, settled_at=$3, version = version + 1
		WHERE id = $4 AND version = $5`,
		string(b.Status), payout, nullTime(b.SettledAt), b.ID, b.Version)
	return checkUpdated(res, err, "update bet")
}

func mapInsertErr(err error, dup error, op string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return dup
	}
	return fmt.Errorf("%s: %w", op, err)
}

func checkUpdated(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}

func num(v uint64) string { return strconv.FormatUint(v, 10) }

func nullTime(t time.Time) sql.NullTime { return sql.NullTime{Time: t, Valid: !t.IsZero()} }

type amt struct {
	raw string
	dst *uint64
}

func parseAmounts(vs ...amt) error {
	for _, v := range vs {
		n, err := strconv.ParseUint(v.raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse amount %q: %w", v.raw, err)
		}
		*v.dst = n
	}
	return nil
}
