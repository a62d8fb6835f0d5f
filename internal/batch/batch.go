// Package batch collects commands bound to one connector and runs them in
// order on a single connection.
package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/connector"
)

// ErrNoRowsAffected is returned when a command that must change a row
// changed none, such as the update of a row that no longer exists.
var ErrNoRowsAffected = errors.New("no rows affected")

// Option configures a Batch.
type Option func(*Batch)

// WithLogger sets the logger used for per-command debug output.
func WithLogger(l *slog.Logger) Option {
	return func(b *Batch) {
		if l != nil {
			b.logger = l
		}
	}
}

// Batch is an ordered list of commands for one connector. It is not safe for
// concurrent use.
type Batch struct {
	conn     connector.Connector
	commands []*command.Command
	logger   *slog.Logger
}

// New creates an empty batch bound to conn.
func New(conn connector.Connector, opts ...Option) *Batch {
	b := &Batch{conn: conn, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connector returns the connector the batch runs against.
func (b *Batch) Connector() connector.Connector { return b.conn }

// AddCommand appends cmd.
func (b *Batch) AddCommand(cmd *command.Command) *Batch {
	b.commands = append(b.commands, cmd)
	return b
}

// Add builds a command from its parts, appends it and returns it.
func (b *Batch) Add(text string, kind command.Kind, cb command.Callback, obj any, params ...command.Parameter) *command.Command {
	cmd := command.New(text, kind)
	for _, p := range params {
		cmd.AddParameter(p)
	}
	cmd.Callback = cb
	cmd.Object = obj
	b.commands = append(b.commands, cmd)
	return cmd
}

// AddBatch appends every command of other, keeping its order.
func (b *Batch) AddBatch(other *Batch) *Batch {
	if other != nil {
		b.commands = append(b.commands, other.commands...)
	}
	return b
}

// Commands returns the commands in execution order.
func (b *Batch) Commands() []*command.Command { return b.commands }

// Len returns the number of commands.
func (b *Batch) Len() int { return len(b.commands) }

// RemoveDuplicateCommands drops every command structurally equal to an
// earlier one and returns how many were removed. Commands with output
// parameters or deferred values are always kept.
func (b *Batch) RemoveDuplicateCommands() int {
	kept := b.commands[:0:0]
	removed := 0
outer:
	for _, cmd := range b.commands {
		if cmd.Deduplicable() {
			for _, k := range kept {
				if k.Deduplicable() && k.Equal(cmd) {
					removed++
					continue outer
				}
			}
		}
		kept = append(kept, cmd)
	}
	b.commands = kept
	return removed
}

// execer is satisfied by both *sqlx.Conn and *sqlx.Tx.
type execer interface {
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Execute runs every command in order on one connection. The result holds
// one row list per command. The first failing command or callback stops the
// batch; its error is returned after the connection is released.
func (b *Batch) Execute(ctx context.Context) ([][]command.Row, error) {
	return b.execute(ctx, false)
}

// ExecuteInTransaction is Execute wrapped in a transaction that is committed
// when every command succeeds and rolled back otherwise. After a rollback the
// Rollback hooks of the commands that ran are called in reverse order and no
// Commit hook runs.
func (b *Batch) ExecuteInTransaction(ctx context.Context) ([][]command.Row, error) {
	return b.execute(ctx, true)
}

func (b *Batch) execute(ctx context.Context, inTx bool) (results [][]command.Row, err error) {
	if len(b.commands) == 0 {
		return [][]command.Row{}, nil
	}
	db := b.conn.DB()
	if db == nil {
		return nil, fmt.Errorf("batch: connector %s is not connected", b.conn.DriverName())
	}

	conn, err := db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("batch: open connection: %w", err)
	}
	defer conn.Close()

	id, idErr := uuid.NewV7()
	if idErr != nil {
		id = uuid.New()
	}
	log := b.logger.With("batch", id.String())

	// Registered before the transaction so it sees the outcome of the commit.
	var ran []*command.Command
	defer func() {
		if err != nil && inTx {
			b.rollback(log, ran)
			return
		}
		for _, cmd := range ran {
			if cmd.Commit != nil {
				cmd.Commit(cmd.Object)
			}
		}
	}()

	var ex execer = conn
	if inTx {
		tx, terr := conn.BeginTxx(ctx, nil)
		if terr != nil {
			return nil, fmt.Errorf("batch: begin transaction: %w", terr)
		}
		defer func() {
			if err != nil {
				tx.Rollback()
				return
			}
			if cerr := tx.Commit(); cerr != nil {
				results, err = nil, fmt.Errorf("batch: commit: %w", cerr)
			}
		}()
		ex = tx
	}

	start := time.Now()

	results = make([][]command.Row, 0, len(b.commands))
	for i, cmd := range b.commands {
		rows, err := b.run(ctx, ex, cmd)
		if err != nil {
			log.Debug("batch command failed", "index", i, "command", cmd.Text, "error", err)
			return nil, fmt.Errorf("batch command %d (%s): %w", i, cmd.Text, err)
		}
		ran = append(ran, cmd)
		if cmd.Callback != nil {
			if err := cmd.Callback(cmd.Object, rows); err != nil {
				return nil, fmt.Errorf("batch command %d callback: %w", i, err)
			}
		}
		log.Debug("batch command", "index", i, "command", cmd.Text, "rows", len(rows))
		results = append(results, rows)
	}

	log.Debug("batch executed", "commands", len(b.commands), "duration", time.Since(start))
	return results, nil
}

// rollback calls the Rollback hooks of ran, last command first.
func (b *Batch) rollback(log *slog.Logger, ran []*command.Command) {
	for i := len(ran) - 1; i >= 0; i-- {
		cmd := ran[i]
		if cmd.Rollback == nil {
			continue
		}
		if err := cmd.Rollback(cmd.Object); err != nil {
			log.Warn("batch rollback hook failed", "command", cmd.Text, "error", err)
		}
	}
}

func (b *Batch) run(ctx context.Context, ex execer, cmd *command.Command) ([]command.Row, error) {
	text := cmd.Text
	if cmd.Kind == command.StoredProcedure {
		var err error
		if text, err = b.conn.BuildProcedureCall(ctx, cmd); err != nil {
			return nil, err
		}
	}

	args, err := cmd.Args(b.conn.NamedParameters())
	if err != nil {
		return nil, err
	}

	// Without RETURNING the generated key is only available from the result.
	if outs := cmd.Outputs(); len(outs) > 0 && !b.conn.SupportsReturning() {
		res, err := ex.ExecContext(ctx, text, args...)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("read generated key: %w", err)
		}
		return []command.Row{{outs[0].Name: id}}, nil
	}

	if cmd.MustAffectRows && !cmd.HasOutput() {
		res, err := ex.ExecContext(ctx, text, args...)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("read affected rows: %w", err)
		}
		if n == 0 {
			return nil, ErrNoRowsAffected
		}
		return []command.Row{}, nil
	}

	rows, err := ex.QueryxContext(ctx, text, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []command.Row{}
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, command.Row(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
