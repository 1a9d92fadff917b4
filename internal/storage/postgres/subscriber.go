package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/footer"
)

const (
	insertSubscriberSQL = `INSERT INTO subscribers (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`

	subscriberExistsSQL = `SELECT EXISTS (SELECT 1 FROM subscribers WHERE email = $1)`

	listSubscribersSQL = `SELECT email FROM subscribers`
)

var _ footer.Subscriber = (*SubscriberRepository)(nil)

// SubscriberRepository stores newsletter subscribers.
type SubscriberRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriberRepository returns a SubscriberRepository that uses the given pool.
func NewSubscriberRepository(pool *pgxpool.Pool) *SubscriberRepository {
	return &SubscriberRepository{pool: pool}
}

// Subscribe records email in normalized form. Repeated addresses are ignored.
func (r *SubscriberRepository) Subscribe(ctx context.Context, email string) error {
	if _, err := r.pool.Exec(ctx, insertSubscriberSQL, footer.NormalizeEmail(email)); err != nil {
		return errors.Wrap(err, "insert subscriber")
	}
	return nil
}

// Exists reports whether email is already subscribed.
func (r *SubscriberRepository) Exists(ctx context.Context, email string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, subscriberExistsSQL, footer.NormalizeEmail(email)).Scan(&ok); err != nil {
		return false, errors.Wrap(err, "check subscriber")
	}
	return ok, nil
}

// Each calls fn for every stored address.
func (r *SubscriberRepository) Each(ctx context.Context, fn func(email string)) error {
	rows, err := r.pool.Query(ctx, listSubscribersSQL)
	if err != nil {
		return errors.Wrap(err, "list subscribers")
	}
	defer rows.Close()

	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return errors.Wrap(err, "scan subscriber")
		}
		fn(email)
	}
	return rows.Err()
}

// CopyNew bulk-inserts addresses with COPY. The caller guarantees none of
// them exist yet; a duplicate fails the whole batch.
func (r *SubscriberRepository) CopyNew(ctx context.Context, emails []string) (int64, error) {
	n, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"subscribers"},
		[]string{"email"},
		pgx.CopyFromSlice(len(emails), func(i int) ([]any, error) {
			return []any{footer.NormalizeEmail(emails[i])}, nil
		}),
	)
	if err != nil {
		return 0, errors.Wrap(err, "copy subscribers")
	}
	return n, nil
}
