package ledger

import (
	"errors"
	"fmt"

	"paper-trading-go/internal/money"
)

var (
	// ErrInsufficientAvailableBalance marks a debit or reservation larger
	// than the available amount of its currency.
	ErrInsufficientAvailableBalance = errors.New("insufficient available balance")

	// ErrInsufficientReservedBalance marks a release larger than the
	// reserved amount of its currency.
	ErrInsufficientReservedBalance = errors.New("insufficient reserved balance")
)

type balanceSlot struct {
	available money.Money
	reserved  money.Money
}

// Balance is a per-currency ledger of available versus reserved amounts.
// Both sides are always non-negative, and total(currency) is always
// available(currency) + reserved(currency). Every mutation either fully
// updates one currency slot or fails without touching anything.
//
// Balance itself is not safe for concurrent use; the owning Account
// serializes access (see Service).
type Balance struct {
	slots map[money.Currency]balanceSlot
}

// NewBalance creates an empty balance with no currency slots.
func NewBalance() *Balance {
	return &Balance{slots: make(map[money.Currency]balanceSlot)}
}

// Available returns the available amount for the currency, zero if the
// currency has never been touched.
func (b *Balance) Available(currency money.Currency) money.Money {
	return b.slot(currency).available
}

// Reserved returns the reserved amount for the currency, zero if the
// currency has never been touched.
func (b *Balance) Reserved(currency money.Currency) money.Money {
	return b.slot(currency).reserved
}

// Total returns available + reserved for the currency.
func (b *Balance) Total(currency money.Currency) money.Money {
	s := b.slot(currency)
	total, _ := s.available.Add(s.reserved)
	return total
}

// Currencies returns every currency with a non-zero total, in no particular
// order.
func (b *Balance) Currencies() []money.Currency {
	var out []money.Currency
	for currency := range b.slots {
		if !b.Total(currency).IsZero() {
			out = append(out, currency)
		}
	}
	return out
}

// AddAvailable credits the available side for the money's currency. Credits
// never carry negative amounts; a negative argument fails with
// ErrInvalidAmount. Debits go through reserve or the service's explicit
// subtraction paths.
func (b *Balance) AddAvailable(m money.Money) error {
	if m.IsNegative() {
		return fmt.Errorf("%w: credit of %s", money.ErrInvalidAmount, m)
	}
	s := b.slot(m.Currency())
	available, err := s.available.Add(m)
	if err != nil {
		return err
	}
	s.available = available
	b.slots[m.Currency()] = s
	return nil
}

// Reserve moves the amount from available to reserved for its currency. It
// fails with ErrInsufficientAvailableBalance when available is short, and in
// that case mutates nothing.
func (b *Balance) Reserve(m money.Money) error {
	if m.IsNegative() {
		return fmt.Errorf("%w: reservation of %s", money.ErrInvalidAmount, m)
	}
	s := b.slot(m.Currency())
	short, err := s.available.LessThan(m)
	if err != nil {
		return err
	}
	if short {
		return fmt.Errorf("%w: %s available, %s requested",
			ErrInsufficientAvailableBalance, s.available, m)
	}
	s.available, _ = s.available.Sub(m)
	s.reserved, _ = s.reserved.Add(m)
	b.slots[m.Currency()] = s
	return nil
}

// Unreserve moves the amount back from reserved to available, the inverse of
// Reserve. It fails with ErrInsufficientReservedBalance when reserved is
// short, and in that case mutates nothing.
func (b *Balance) Unreserve(m money.Money) error {
	if m.IsNegative() {
		return fmt.Errorf("%w: release of %s", money.ErrInvalidAmount, m)
	}
	s := b.slot(m.Currency())
	short, err := s.reserved.LessThan(m)
	if err != nil {
		return err
	}
	if short {
		return fmt.Errorf("%w: %s reserved, %s requested",
			ErrInsufficientReservedBalance, s.reserved, m)
	}
	s.reserved, _ = s.reserved.Sub(m)
	s.available, _ = s.available.Add(m)
	b.slots[m.Currency()] = s
	return nil
}

// subAvailable debits the available side. Only the ledger service calls this,
// under the account lock, so the check and the write are one logical step.
func (b *Balance) subAvailable(m money.Money) error {
	if m.IsNegative() {
		return fmt.Errorf("%w: debit of %s", money.ErrInvalidAmount, m)
	}
	s := b.slot(m.Currency())
	short, err := s.available.LessThan(m)
	if err != nil {
		return err
	}
	if short {
		return fmt.Errorf("%w: %s available, %s requested",
			ErrInsufficientAvailableBalance, s.available, m)
	}
	s.available, _ = s.available.Sub(m)
	b.slots[m.Currency()] = s
	return nil
}

func (b *Balance) slot(currency money.Currency) balanceSlot {
	if s, ok := b.slots[currency]; ok {
		return s
	}
	return balanceSlot{
		available: money.Zero(currency),
		reserved:  money.Zero(currency),
	}
}

// Amounts is a read-only view of one currency slot.
type Amounts struct {
	Available money.Money
	Reserved  money.Money
}

// View returns a copy of every currency slot, including zeroed ones that
// were touched at some point.
func (b *Balance) View() map[money.Currency]Amounts {
	view := make(map[money.Currency]Amounts, len(b.slots))
	for currency, s := range b.slots {
		view[currency] = Amounts{Available: s.available, Reserved: s.reserved}
	}
	return view
}
