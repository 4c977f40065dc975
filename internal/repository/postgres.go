package repository

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const defaultMaxRetries = 3

const auctionColumns = `id, seller_id, product_name, category, description, item_condition, image_url, image_urls,
	starting_price, min_increment, buy_now_price, start_time, end_time, auto_extend,
	current_bid, bid_count, highest_bidder_id, enabled, closed, status, version, created_at, updated_at`

type txKey struct{}

// PostgresRepo implements every store on PostgreSQL. AtomicUpdate locks the
// auction row with SELECT ... FOR UPDATE inside a transaction that is carried
// in the context, so ledger appends made by the mutator commit or roll back
// together with the auction write.
type PostgresRepo struct {
	pool       *pgxpool.Pool
	maxRetries int
	retryDelay time.Duration
}

// PostgresOption configures a PostgresRepo
type PostgresOption func(*PostgresRepo)

// WithMaxRetries bounds how often a conflicting transaction is retried.
func WithMaxRetries(n int) PostgresOption {
	return func(r *PostgresRepo) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// NewPostgresRepo connects to dsn and applies the embedded migrations
func NewPostgresRepo(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresRepo, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepo{pool: pool, maxRetries: defaultMaxRetries, retryDelay: 20 * time.Millisecond}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepo) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close closes the connection pool
func (r *PostgresRepo) Close() {
	r.pool.Close()
}

// CreateAuction inserts a new auction row
func (r *PostgresRepo) CreateAuction(ctx context.Context, a model.Auction) error {
	_, err := r.exec(ctx, `INSERT INTO auctions (`+auctionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		a.AuctionID, a.SellerID, a.ProductName, a.Category, a.Description, a.Condition, a.ImageURL, a.ImageURLs,
		a.StartingPrice, a.MinIncrement, a.BuyNowPrice, a.StartTime, a.EndTime, a.AutoExtend,
		a.CurrentBid, a.BidCount, nullableString(a.HighestBidderID), a.Enabled, a.Closed, string(a.Status), a.Version,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == pgerrcode.UniqueViolation || pgErr.Code == pgerrcode.CheckViolation) {
			return fmt.Errorf("create auction %s: %w - %s", a.AuctionID, biddingerrors.ErrInvalidAuction, pgErr.Message)
		}
		return fmt.Errorf("create auction: %w", err)
	}
	return nil
}

// GetAuction returns one auction
func (r *PostgresRepo) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	return r.getAuction(ctx, auctionID, false)
}

func (r *PostgresRepo) getAuction(ctx context.Context, auctionID string, forUpdate bool) (model.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	a, err := scanAuction(r.queryRow(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
		}
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return a, nil
}

// AtomicUpdate locks the auction row, applies fn and writes the result back.
// Serialization failures and deadlocks are retried with a fresh read so fn
// always validates against the latest committed state.
func (r *PostgresRepo) AtomicUpdate(ctx context.Context, auctionID string, fn Mutator) (model.Auction, error) {
	var out model.Auction

	err := r.withRetry(ctx, func() error {
		return r.withTx(ctx, func(txCtx context.Context) error {
			working, err := r.getAuction(txCtx, auctionID, true)
			if err != nil {
				return err
			}

			if err := fn(txCtx, &working); err != nil {
				return err
			}

			working.Version++
			if err := r.updateAuction(txCtx, working); err != nil {
				return err
			}
			out = working
			return nil
		})
	})
	if err != nil {
		return model.Auction{}, err
	}
	return out, nil
}

func (r *PostgresRepo) updateAuction(ctx context.Context, a model.Auction) error {
	_, err := r.exec(ctx, `UPDATE auctions SET
		product_name = $2, category = $3, description = $4, item_condition = $5, image_url = $6, image_urls = $7,
		starting_price = $8, min_increment = $9, buy_now_price = $10, start_time = $11, end_time = $12,
		auto_extend = $13, current_bid = $14, bid_count = $15, highest_bidder_id = $16, enabled = $17,
		closed = $18, status = $19, version = $20, updated_at = $21
		WHERE id = $1`,
		a.AuctionID, a.ProductName, a.Category, a.Description, a.Condition, a.ImageURL, a.ImageURLs,
		a.StartingPrice, a.MinIncrement, a.BuyNowPrice, a.StartTime, a.EndTime,
		a.AutoExtend, a.CurrentBid, a.BidCount, nullableString(a.HighestBidderID), a.Enabled,
		a.Closed, string(a.Status), a.Version, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update auction %s: %w", a.AuctionID, err)
	}
	return nil
}

// ListAuctions returns every auction, oldest first
func (r *PostgresRepo) ListAuctions(ctx context.Context) ([]model.Auction, error) {
	return r.queryAuctions(ctx, `SELECT `+auctionColumns+` FROM auctions ORDER BY created_at, id`)
}

// ListAuctionsBySeller returns a seller's auctions
func (r *PostgresRepo) ListAuctionsBySeller(ctx context.Context, sellerID string) ([]model.Auction, error) {
	return r.queryAuctions(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE seller_id = $1 ORDER BY created_at, id`, sellerID)
}

// ListAuctionsByBidder returns the auctions a bidder has bid on
func (r *PostgresRepo) ListAuctionsByBidder(ctx context.Context, bidderID string) ([]model.Auction, error) {
	return r.queryAuctions(ctx, `SELECT `+auctionColumns+` FROM auctions
		WHERE id IN (SELECT auction_id FROM bids WHERE bidder_id = $1)
		ORDER BY created_at, id`, bidderID)
}

// AppendBid inserts a bid; inside AtomicUpdate it joins the auction's transaction
func (r *PostgresRepo) AppendBid(ctx context.Context, bid model.Bid) (model.Bid, error) {
	err := r.queryRow(ctx,
		`INSERT INTO bids (id, auction_id, bidder_id, amount, bid_time) VALUES ($1, $2, $3, $4, $5) RETURNING seq`,
		bid.BidID, bid.AuctionID, bid.BidderID, bid.Amount, bid.CreatedAt,
	).Scan(&bid.Sequence)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return model.Bid{}, fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotFound)
		}
		return model.Bid{}, fmt.Errorf("append bid: %w", err)
	}
	return bid, nil
}

// GetBidsByAuction returns an auction's bids newest first
func (r *PostgresRepo) GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if _, err := r.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	rows, err := r.query(ctx,
		`SELECT id, auction_id, bidder_id, amount, bid_time, seq
		 FROM bids
		 WHERE auction_id = $1
		 ORDER BY bid_time DESC, seq DESC`,
		auctionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select bids: %w", err)
	}
	defer rows.Close()

	bids := make([]model.Bid, 0)
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.BidID, &b.AuctionID, &b.BidderID, &b.Amount, &b.CreatedAt, &b.Sequence); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return bids, nil
}

// PersistNotification stores a notification record
func (r *PostgresRepo) PersistNotification(ctx context.Context, n model.Notification) (string, error) {
	_, err := r.exec(ctx,
		`INSERT INTO notifications (id, user_id, message, severity, is_read, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		n.NotificationID, n.UserID, n.Message, string(n.Severity), n.Read, n.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert notification: %w", err)
	}
	return n.NotificationID, nil
}

// GetNotification returns one notification
func (r *PostgresRepo) GetNotification(ctx context.Context, notificationID string) (model.Notification, error) {
	var (
		n        model.Notification
		severity string
	)
	err := r.queryRow(ctx,
		`SELECT id, user_id, message, severity, is_read, created_at FROM notifications WHERE id = $1`,
		notificationID,
	).Scan(&n.NotificationID, &n.UserID, &n.Message, &severity, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Notification{}, fmt.Errorf("get notification %s: %w", notificationID, biddingerrors.ErrNotificationNotFound)
		}
		return model.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	n.Severity = model.Severity(severity)
	return n, nil
}

// GetNotificationsByUser returns a user's notifications newest first
func (r *PostgresRepo) GetNotificationsByUser(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := r.query(ctx,
		`SELECT id, user_id, message, severity, is_read, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	out := make([]model.Notification, 0)
	for rows.Next() {
		var (
			n        model.Notification
			severity string
		)
		if err := rows.Scan(&n.NotificationID, &n.UserID, &n.Message, &severity, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Severity = model.Severity(severity)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// SetNotificationRead updates the read flag
func (r *PostgresRepo) SetNotificationRead(ctx context.Context, notificationID string, read bool) error {
	tag, err := r.exec(ctx, `UPDATE notifications SET is_read = $2 WHERE id = $1`, notificationID, read)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark notification %s: %w", notificationID, biddingerrors.ErrNotificationNotFound)
	}
	return nil
}

// ToggleWatch adds or removes a watchlist entry
func (r *PostgresRepo) ToggleWatch(ctx context.Context, userID, auctionID string, now time.Time) (bool, error) {
	var watched bool
	err := r.withTx(ctx, func(txCtx context.Context) error {
		tag, err := r.exec(txCtx, `DELETE FROM watchlist WHERE user_id = $1 AND auction_id = $2`, userID, auctionID)
		if err != nil {
			return fmt.Errorf("delete watch: %w", err)
		}
		if tag.RowsAffected() > 0 {
			watched = false
			return nil
		}

		_, err = r.exec(txCtx,
			`INSERT INTO watchlist (user_id, auction_id, created_at) VALUES ($1, $2, $3)`,
			userID, auctionID, now,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return fmt.Errorf("watch auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
			}
			return fmt.Errorf("insert watch: %w", err)
		}
		watched = true
		return nil
	})
	return watched, err
}

// GetWatchedAuctions returns the auctions a user watches
func (r *PostgresRepo) GetWatchedAuctions(ctx context.Context, userID string) ([]model.Auction, error) {
	return r.queryAuctions(ctx, `SELECT `+auctionColumns+` FROM auctions
		WHERE id IN (SELECT auction_id FROM watchlist WHERE user_id = $1)
		ORDER BY created_at, id`, userID)
}

func (r *PostgresRepo) queryAuctions(ctx context.Context, sql string, args ...any) ([]model.Auction, error) {
	rows, err := r.query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select auctions: %w", err)
	}
	defer rows.Close()

	out := make([]model.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func scanAuction(row pgx.Row) (model.Auction, error) {
	var (
		a             model.Auction
		highestBidder *string
		status        string
	)
	err := row.Scan(
		&a.AuctionID, &a.SellerID, &a.ProductName, &a.Category, &a.Description, &a.Condition, &a.ImageURL, &a.ImageURLs,
		&a.StartingPrice, &a.MinIncrement, &a.BuyNowPrice, &a.StartTime, &a.EndTime, &a.AutoExtend,
		&a.CurrentBid, &a.BidCount, &highestBidder, &a.Enabled, &a.Closed, &status, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return model.Auction{}, err
	}
	if highestBidder != nil {
		a.HighestBidderID = *highestBidder
	}
	a.Status = model.Status(status)
	return a, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *PostgresRepo) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *PostgresRepo) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) {
			return err
		}

		if attempt < r.maxRetries {
			timer := time.NewTimer(r.retryDelay * time.Duration(attempt+1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("%w: %v", biddingerrors.ErrConflictRetryExhausted, err)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

func (r *PostgresRepo) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *PostgresRepo) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *PostgresRepo) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
