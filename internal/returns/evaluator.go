package returns

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/catalog"
)

// DefaultWindowDays is the return window measured from the delivery date.
const DefaultWindowDays = 30

const (
	dateLayout     = "2006-01-02"
	returnIDPrefix = "DEV-"
	returnIDLength = 20
)

// Evaluator decides whether a reference leads to a returnable order.
// It is safe for concurrent use once built.
type Evaluator struct {
	catalog    *catalog.Catalog
	windowDays int
	now        func() time.Time
	location   *time.Location
	newID      func() string
	logger     *zap.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithLocation sets the time zone delivery dates and "today" are read in.
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithWindowDays sets the length of the return window.
func WithWindowDays(days int) Option {
	return func(e *Evaluator) {
		if days > 0 {
			e.windowDays = days
		}
	}
}

// WithIDGenerator overrides how return ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(e *Evaluator) { e.newID = gen }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator creates an Evaluator over the given catalog.
func NewEvaluator(c *catalog.Catalog, opts ...Option) *Evaluator {
	e := &Evaluator{
		catalog:    c,
		windowDays: DefaultWindowDays,
		now:        time.Now,
		location:   time.Local,
		newID:      NewReturnID,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewReturnID mints a display-length return identifier.
func NewReturnID() string {
	id := returnIDPrefix + uuid.NewString()
	if len(id) > returnIDLength {
		id = id[:returnIDLength]
	}
	return id
}

// Evaluate checks a customer reference against the catalog. It never fails:
// format problems come back with Success false, business refusals with
// Success true and Eligible false.
func (e *Evaluator) Evaluate(reference string) EligibilityResult {
	raw := strings.TrimSpace(reference)
	if raw == "" {
		return formatFailure(CodeMissingReference,
			"Falta el ID del pedido (P-XXXX) o el número de identificación del cliente (8 dígitos).")
	}

	ref, err := ParseReference(raw)
	if err != nil {
		return formatFailure(CodeInvalidFormat,
			"Formato de referencia inválido. Debe ser ID de pedido (P-XXXX) o nro_id (8 dígitos).")
	}

	candidates := e.candidates(ref)
	if len(candidates) == 0 {
		return ineligible(CodeNotFound,
			fmt.Sprintf("No se encontró un pedido 'Entregado' asociado a la referencia '%s'.", raw))
	}

	today := e.today()
	var (
		selected     *catalog.Order
		selectedDate time.Time
		latest       *catalog.Order
		latestDate   time.Time
	)
	for i := range candidates {
		o := &candidates[i]
		delivered, err := time.ParseInLocation(dateLayout, strings.TrimSpace(o.DeliveryDate), e.location)
		if err != nil {
			e.logger.Debug("skipping order with unparseable delivery date",
				zap.String("order_id", o.ID), zap.String("date", o.DeliveryDate))
			continue
		}
		if latest == nil || delivered.After(latestDate) {
			latest, latestDate = o, delivered
		}
		if today.After(e.deadline(delivered)) {
			continue
		}
		if selected == nil || delivered.After(selectedDate) {
			selected, selectedDate = o, delivered
		}
	}

	if latest == nil {
		return ineligible(CodeDateError,
			"Error al procesar la fecha de entrega del pedido seleccionado.")
	}
	if selected == nil {
		res := ineligible(CodeWindowExpired, fmt.Sprintf(
			"El pedido %s fue el último entregado, pero el plazo de %d días ha expirado (límite: %s).",
			latest.ID, e.windowDays, e.deadline(latestDate).Format(dateLayout)))
		res.OrderID = latest.ID
		res.CustomerID = latest.CustomerID
		res.CustomerName = latest.CustomerName
		return res
	}

	returnable := e.returnableProducts(*selected)
	if len(returnable) == 0 {
		res := ineligible(CodeNothingReturnable, fmt.Sprintf(
			"El pedido %s es válido, pero ninguno de los productos contenidos es retornable según nuestra política.",
			selected.ID))
		res.OrderID = selected.ID
		res.CustomerID = selected.CustomerID
		res.CustomerName = selected.CustomerName
		return res
	}

	result := EligibilityResult{
		Success:  true,
		Eligible: true,
		Code:     CodeEligible,
		Reason: fmt.Sprintf("El pedido %s de %s es elegible. Los siguientes productos son aptos para devolución: %s.",
			selected.ID, selected.CustomerName, strings.Join(returnable, ", ")),
		ReturnableProducts: returnable,
		OrderID:            selected.ID,
		CustomerID:         selected.CustomerID,
		CustomerName:       selected.CustomerName,
		ReturnID:           e.newID(),
	}
	e.logger.Info("return eligible",
		zap.String("order_id", result.OrderID),
		zap.String("return_id", result.ReturnID),
		zap.Int("products", len(returnable)))
	return result
}

// candidates keeps only delivered orders on both lookup paths.
func (e *Evaluator) candidates(ref Reference) []catalog.Order {
	switch ref.Kind {
	case RefOrderID:
		o, ok := e.catalog.Order(ref.Value)
		if !ok || !o.Status.IsDelivered() {
			return nil
		}
		return []catalog.Order{o}
	case RefCustomerID:
		var out []catalog.Order
		for _, o := range e.catalog.OrdersByCustomer(ref.Value) {
			if o.Status.IsDelivered() {
				out = append(out, o)
			}
		}
		return out
	default:
		return nil
	}
}

// returnableProducts fails closed: a line with no catalog match is not returnable.
func (e *Evaluator) returnableProducts(o catalog.Order) []string {
	out := []string{}
	for _, name := range o.Products {
		p, ok := e.catalog.MatchProduct(name)
		if ok && p.Returnable {
			out = append(out, name)
		}
	}
	return out
}

func (e *Evaluator) today() time.Time {
	now := e.now().In(e.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.location)
}

func (e *Evaluator) deadline(delivered time.Time) time.Time {
	return delivered.AddDate(0, 0, e.windowDays)
}
