package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision, and
// freeze-request timestamps are assigned by the database (NOW()), not the
// client, so countdown math is immune to client clock skew.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateRoom(ctx context.Context, r *model.RoomState) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (code, status, current_day, start_day, fee_rate, indicator_toggles,
		                    game_end, time_offset_years, winner_nickname, winner_roi, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7, $8, NULL, NULL, $9)`,
		r.Code, string(r.Status), r.CurrentDay, r.StartDay, r.FeeRate.String(),
		r.IndicatorToggles, r.GameEnd, r.TimeOffsetYears, r.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetRoom(ctx context.Context, code string) (*model.RoomState, error) {
	var r model.RoomState
	var status, feeRate string
	var winnerNickname *string
	var winnerROI *string

	err := s.pool.QueryRow(ctx,
		`SELECT code, status, current_day, start_day, fee_rate::TEXT, indicator_toggles,
		        game_end, time_offset_years, winner_nickname, winner_roi::TEXT, created_at
		 FROM rooms WHERE code = $1`, code).
		Scan(&r.Code, &status, &r.CurrentDay, &r.StartDay, &feeRate, &r.IndicatorToggles,
			&r.GameEnd, &r.TimeOffsetYears, &winnerNickname, &winnerROI, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}

	r.Status = model.RoomStatus(status)
	r.FeeRate, _ = decimal.NewFromString(feeRate)
	if winnerNickname != nil && winnerROI != nil {
		roi, _ := decimal.NewFromString(*winnerROI)
		r.FinalWinner = &model.Winner{Nickname: *winnerNickname, ROI: roi}
	}
	return &r, nil
}

func (s *PostgresStore) UpdateRoom(ctx context.Context, r *model.RoomState) error {
	var winnerNickname *string
	var winnerROI *string
	if r.FinalWinner != nil {
		winnerNickname = &r.FinalWinner.Nickname
		roi := r.FinalWinner.ROI.String()
		winnerROI = &roi
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE rooms
		 SET status = $2, current_day = $3, start_day = $4, fee_rate = $5::NUMERIC,
		     indicator_toggles = $6, game_end = $7, time_offset_years = $8,
		     winner_nickname = $9, winner_roi = $10::NUMERIC
		 WHERE code = $1`,
		r.Code, string(r.Status), r.CurrentDay, r.StartDay, r.FeeRate.String(),
		r.IndicatorToggles, r.GameEnd, r.TimeOffsetYears, winnerNickname, winnerROI,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room %s: %w", r.Code, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) UpsertPlayer(ctx context.Context, code string, p *model.PlayerState) error {
	var roi *string
	if p.ROI != nil {
		v := p.ROI.String()
		roi = &v
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO players (room_code, nickname, cash, units, avg_cost, roi, assets, updated_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, NOW())
		 ON CONFLICT (room_code, nickname) DO UPDATE
		 SET cash = EXCLUDED.cash, units = EXCLUDED.units, avg_cost = EXCLUDED.avg_cost,
		     roi = EXCLUDED.roi, assets = EXCLUDED.assets, updated_at = NOW()`,
		code, p.Nickname, p.Cash.String(), p.Units.String(), p.AvgCost.String(),
		roi, p.Assets.String(),
	)
	return err
}

func (s *PostgresStore) GetPlayer(ctx context.Context, code, nickname string) (*model.PlayerState, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT nickname, cash::TEXT, units::TEXT, avg_cost::TEXT, roi::TEXT, assets::TEXT, updated_at
		 FROM players WHERE room_code = $1 AND nickname = $2`, code, nickname)

	p, err := scanPlayer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("player %s in room %s: %w", nickname, code, ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) ListPlayers(ctx context.Context, code string) ([]model.PlayerState, error) {
	// id is a BIGSERIAL, so ordering by it preserves first-seen join order.
	rows, err := s.pool.Query(ctx,
		`SELECT nickname, cash::TEXT, units::TEXT, avg_cost::TEXT, roi::TEXT, assets::TEXT, updated_at
		 FROM players WHERE room_code = $1 ORDER BY id`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []model.PlayerState
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func (s *PostgresStore) DeletePlayers(ctx context.Context, code string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM players WHERE room_code = $1`, code)
	return err
}

func (s *PostgresStore) CreateFreezeRequest(ctx context.Context, code, nickname string) (*model.FreezeRequest, error) {
	fr := model.FreezeRequest{Nickname: nickname}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO freeze_requests (room_code, nickname, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (room_code, nickname) DO UPDATE SET nickname = EXCLUDED.nickname
		 RETURNING created_at`,
		code, nickname).Scan(&fr.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create freeze request: %w", err)
	}
	return &fr, nil
}

func (s *PostgresStore) DeleteFreezeRequest(ctx context.Context, code, nickname string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM freeze_requests WHERE room_code = $1 AND nickname = $2`, code, nickname)
	return err
}

func (s *PostgresStore) DeleteAllFreezeRequests(ctx context.Context, code string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM freeze_requests WHERE room_code = $1`, code)
	return err
}

func (s *PostgresStore) ListFreezeRequests(ctx context.Context, code string) ([]model.FreezeRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT nickname, created_at FROM freeze_requests
		 WHERE room_code = $1 ORDER BY created_at`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []model.FreezeRequest
	for rows.Next() {
		var fr model.FreezeRequest
		if err := rows.Scan(&fr.Nickname, &fr.CreatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, fr)
	}
	return reqs, rows.Err()
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, code, nickname string, tx *model.Transaction) error {
	var pnl *string
	if tx.PnL != nil {
		v := tx.PnL.String()
		pnl = &v
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, room_code, nickname, day, kind, price, units, amount, cash_after, pnl, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11)`,
		tx.ID, code, nickname, tx.Day, string(tx.Kind),
		tx.Price.String(), tx.Units.String(), tx.Amount.String(), tx.CashAfter.String(),
		pnl, tx.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListTransactions(ctx context.Context, code, nickname string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, day, kind, price::TEXT, units::TEXT, amount::TEXT, cash_after::TEXT, pnl::TEXT, timestamp
		 FROM transactions WHERE room_code = $1 AND nickname = $2 ORDER BY timestamp`, code, nickname)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		var kind, price, units, amount, cashAfter string
		var pnl *string
		if err := rows.Scan(&tx.ID, &tx.Day, &kind, &price, &units, &amount, &cashAfter, &pnl, &tx.Timestamp); err != nil {
			return nil, err
		}
		tx.Kind = model.TradeKind(kind)
		tx.Price, _ = decimal.NewFromString(price)
		tx.Units, _ = decimal.NewFromString(units)
		tx.Amount, _ = decimal.NewFromString(amount)
		tx.CashAfter, _ = decimal.NewFromString(cashAfter)
		if pnl != nil {
			v, _ := decimal.NewFromString(*pnl)
			tx.PnL = &v
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// pgxRow lets scanPlayer serve both QueryRow and Query results.
type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanPlayer(row pgxRow) (*model.PlayerState, error) {
	var p model.PlayerState
	var cash, units, avgCost, assets string
	var roi *string

	if err := row.Scan(&p.Nickname, &cash, &units, &avgCost, &roi, &assets, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Cash, _ = decimal.NewFromString(cash)
	p.Units, _ = decimal.NewFromString(units)
	p.AvgCost, _ = decimal.NewFromString(avgCost)
	p.Assets, _ = decimal.NewFromString(assets)
	if roi != nil {
		v, _ := decimal.NewFromString(*roi)
		p.ROI = &v
	}
	return &p, nil
}
