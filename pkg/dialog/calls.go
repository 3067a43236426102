package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/wizard"
)

// invoke runs a wizard's backend call.
func invoke(ctx context.Context, be Backend, c wizard.Call) (wizard.Outcome, time.Duration) {
	start := time.Now()
	out := wizard.Outcome{Op: c.Op}

	switch c.Op {
	case wizard.OpGetBalance:
		out.Balance, out.Err = be.GetBalance(ctx)
	case wizard.OpTransfer:
		out.Balance, out.Err = be.Transfer(ctx, c.Name, c.Amount)
	case wizard.OpRecentTransactions:
		out.Transactions, out.Err = be.RecentTransactions(ctx, c.Limit)
	case wizard.OpFindProduct:
		out.Matches, out.Err = be.FindProduct(ctx, c.Query)
	case wizard.OpAddToCart:
		out.Cart, out.Err = be.AddToCart(ctx, c.Product, c.Quantity)
	case wizard.OpCart:
		out.Cart, out.Err = be.Cart(ctx)
	case wizard.OpCheckout:
		out.Order, out.Err = be.Checkout(ctx)
	case wizard.OpEmptyCart:
		out.Err = be.EmptyCart(ctx)
	case wizard.OpRegister:
		out.Account, out.Err = be.Register(ctx, c.Name, c.PIN)
	case wizard.OpLogin:
		out.Account, out.Err = be.Login(ctx, c.Name, c.PIN)
	default:
		out.Err = fmt.Errorf("unknown backend operation %q", c.Op)
	}
	return out, time.Since(start)
}

func (s *Supervisor) reportCall(c wizard.Call, out wizard.Outcome, took time.Duration) {
	data := &events.BackendData{Operation: string(c.Op), DurationMs: took.Milliseconds()}
	if out.Err == nil {
		s.emit(events.BackendCalled, data)
		return
	}
	data.Error = out.Err.Error()
	s.emit(events.BackendFailed, data)
	slog.WarnContext(s.ctx, "backend call failed",
		slog.String("operation", string(c.Op)),
		slog.Any("call", c.Redacted()),
		slog.String("error", out.Err.Error()))
}
