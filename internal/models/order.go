package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/uptrace/bun"

	"ms-registration/internal/pricing"
)

// Wizard steps with a fixed position. Student steps sit between details
// and confirmation, one per purchased ticket, and are generated on the fly.
const (
	StepTickets      = "tickets"
	StepDetails      = "details"
	StepConfirmation = "confirmation"
)

// ErrUnknownStep is returned when the wizard cursor is pointed at a step
// that is not part of the current sequence. This is a caller contract
// violation: navigation must be driven off Steps().
var ErrUnknownStep = errors.New("step does not exist")

// Cart maps a ticket type to the requested quantity. Stored as a JSON
// column; its key set must always match the edition's ticket types.
type Cart map[string]int

// Order is the aggregate root of the checkout flow: billing details, the
// cart, the attendee records, and the payment linkage. The wizard cursor
// is request scoped and never persisted.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID         int64  `bun:"id,pk,autoincrement" json:"-"`
	Identifier string `bun:"identifier,notnull,unique" json:"identifier"`
	Cart       Cart   `bun:"cart" json:"cart"`

	BillingName    string `bun:"billing_name" json:"billing_name"`
	BillingEmail   string `bun:"billing_email" json:"billing_email"`
	BillingAddress string `bun:"billing_address" json:"billing_address"`
	BillingPostal  string `bun:"billing_postal" json:"billing_postal"`
	BillingCity    string `bun:"billing_city" json:"billing_city"`
	BillingCountry string `bun:"billing_country" json:"billing_country"`
	BillingPhone   string `bun:"billing_phone" json:"billing_phone"`
	TermsAccepted  bool   `bun:"terms_accepted" json:"terms_accepted"`

	ConfirmedAt  *time.Time `bun:"confirmed_at,nullzero" json:"confirmed_at,omitempty"`
	PaymentID    string     `bun:"payment_id,nullzero" json:"payment_id,omitempty"`
	ManuallyPaid bool       `bun:"manually_paid" json:"manually_paid"`
	PaidByCard   bool       `bun:"paid_by_card" json:"paid_by_card"`

	DiscountCodeID int64         `bun:"discount_code_id,nullzero" json:"-"`
	DiscountCode   *DiscountCode `bun:"rel:belongs-to,join:discount_code_id=id" json:"discount_code,omitempty"`
	Students       []*Student    `bun:"rel:has-many,join:id=order_id" json:"students"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	// PromoCode is the code the visitor typed this request; resolving it
	// against the discount store attaches DiscountCode.
	PromoCode string `bun:"-" json:"promo_code,omitempty"`

	currentStep string
}

// NewOrder returns an unpersisted order with a zero quantity for every
// ticket type of the edition.
func NewOrder(tab pricing.Table) *Order {
	cart := make(Cart)
	for _, typ := range tab.Types() {
		cart[typ] = 0
	}
	return &Order{Cart: cart}
}

// ---------------- CART ----------------

// SumTickets returns the total quantity across all ticket types.
func (o *Order) SumTickets() int {
	total := 0
	for _, qty := range o.Cart {
		total += qty
	}
	return total
}

// SumTotal returns the cart total minus any attached discount, rounded to
// two decimal places.
func (o *Order) SumTotal(tab pricing.Table) float64 {
	total := 0.0
	for _, typ := range tab.Types() {
		price, _ := tab.Price(typ)
		total += float64(o.Cart[typ] * price)
	}
	if o.DiscountCode == nil {
		return total
	}
	return round2(total - o.DiscountAmount(tab))
}

// DiscountAmount returns the discount over the non-exempt part of the
// cart, or 0 when no code is attached.
func (o *Order) DiscountAmount(tab pricing.Table) float64 {
	if o.DiscountCode == nil {
		return 0
	}
	total := 0
	for _, typ := range tab.Types() {
		if tab.Exempt(typ) {
			continue
		}
		price, _ := tab.Price(typ)
		total += o.Cart[typ] * price
	}
	return float64(total) * (o.DiscountCode.DiscountPercentage / 100.0)
}

// MinTicketPrice is the floor a cart total must reach to count as a real
// order. With a discount attached it scales by the discount percentage.
func (o *Order) MinTicketPrice(tab pricing.Table) float64 {
	min := float64(tab.MinPrice())
	if o.DiscountCode == nil {
		return min
	}
	return min * (o.DiscountCode.DiscountPercentage / 100.0)
}

func (o *Order) cartHasValidTicketTypes(tab pricing.Table) bool {
	types := tab.Types()
	if len(o.Cart) != len(types) {
		return false
	}
	for _, typ := range types {
		if _, ok := o.Cart[typ]; !ok {
			return false
		}
	}
	return true
}

func (o *Order) cartHasPositiveAmounts(errs ValidationErrors) bool {
	for _, qty := range o.Cart {
		if qty < 0 {
			errs.Add("cart", "You can only order amounts of 1 or more tickets.")
			return false
		}
	}
	if o.SumTickets() == 0 {
		errs.Add("cart", "You can only order amounts of 1 or more tickets.")
		return false
	}
	return true
}

func (o *Order) cartValid(tab pricing.Table, errs ValidationErrors) bool {
	return o.cartHasValidTicketTypes(tab) &&
		o.SumTotal(tab) >= o.MinTicketPrice(tab) &&
		o.cartHasPositiveAmounts(errs)
}

// ---------------- STEP SEQUENCE ----------------

// StudentStep names the wizard step for the i-th attendee.
func StudentStep(i int) string {
	return fmt.Sprintf("students-%d", i)
}

// Steps returns the full ordered wizard sequence, rebuilt from the
// current cart on every call. It is deliberately not cached: editing the
// cart reshapes the sequence under any previously set cursor.
func (o *Order) Steps() []string {
	steps := []string{StepTickets, StepDetails}
	for i := 0; i < o.SumTickets(); i++ {
		steps = append(steps, StudentStep(i))
	}
	return append(steps, StepConfirmation)
}

// CurrentStep returns the wizard cursor, defaulting to the first step.
func (o *Order) CurrentStep() string {
	if o.currentStep == "" {
		return o.Steps()[0]
	}
	return o.currentStep
}

// SetCurrentStep moves the cursor. The empty string resets it to the
// default; anything not in Steps() is a contract violation.
func (o *Order) SetCurrentStep(step string) error {
	if step != "" && stepIndex(o.Steps(), step) < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	o.currentStep = step
	return nil
}

// NextStep advances the cursor, clamped at the last step.
func (o *Order) NextStep() string {
	steps := o.Steps()
	idx := stepIndex(steps, o.CurrentStep()) + 1
	if idx > len(steps)-1 {
		idx = len(steps) - 1
	}
	o.currentStep = steps[idx]
	return o.currentStep
}

// PreviousStep moves the cursor back, clamped at the first step.
func (o *Order) PreviousStep() string {
	steps := o.Steps()
	idx := stepIndex(steps, o.CurrentStep()) - 1
	if idx < 0 {
		idx = 0
	}
	o.currentStep = steps[idx]
	return o.currentStep
}

func (o *Order) FirstStep() bool {
	return o.CurrentStep() == o.Steps()[0]
}

func (o *Order) LastStep() bool {
	steps := o.Steps()
	return o.CurrentStep() == steps[len(steps)-1]
}

// AtOrAfter reports whether the cursor is at or past the named step.
// A step missing from the current sequence compares as true, so gated
// validations keep firing when cart edits reshape the sequence.
func (o *Order) AtOrAfter(step string) bool {
	return o.stepAtOrAfter(o.CurrentStep(), step)
}

// After is AtOrAfter with a strict comparison, same permissiveness for
// unknown steps.
func (o *Order) After(step string) bool {
	steps := o.Steps()
	target := stepIndex(steps, step)
	if target < 0 {
		return true
	}
	return stepIndex(steps, o.CurrentStep()) > target
}

func stepIndex(steps []string, step string) int {
	for i, s := range steps {
		if s == step {
			return i
		}
	}
	return -1
}

// ---------------- VALIDATION ----------------

// Validate runs the step-gated validations against the current cursor.
func (o *Order) Validate(tab pricing.Table) ValidationErrors {
	return o.ValidateStep(o.CurrentStep(), tab)
}

// ValidateStep evaluates the order as if the wizard were on the given
// step, without touching the cursor. Cart shape is always checked;
// billing details and terms from "details" on; attendee records only at
// the confirmation step and only when tickets were purchased.
func (o *Order) ValidateStep(step string, tab pricing.Table) ValidationErrors {
	errs := NewValidationErrors()

	if !o.cartValid(tab, errs) {
		errs.Add("cart", "Please select 1 or more tickets.")
	}

	if o.stepAtOrAfter(step, StepDetails) {
		o.validateBilling(errs)
		if !o.TermsAccepted {
			errs.Add("terms_and_conditions", "must be accepted.")
		}
	}

	if o.SumTickets() > 0 && o.stepAtOrAfter(step, StepConfirmation) {
		o.validateStudents(errs)
	}

	return errs
}

// AllStepsValid folds ValidateStep over the whole sequence; the order is
// ready to finalize only when every step passes.
func (o *Order) AllStepsValid(tab pricing.Table) bool {
	for _, step := range o.Steps() {
		if o.ValidateStep(step, tab).Any() {
			return false
		}
	}
	return true
}

// stepAtOrAfter is AtOrAfter evaluated at an explicit cursor position,
// keeping the vacuous-true behaviour for steps outside the sequence.
func (o *Order) stepAtOrAfter(current, target string) bool {
	steps := o.Steps()
	targetIdx := stepIndex(steps, target)
	if targetIdx < 0 {
		return true
	}
	return stepIndex(steps, current) >= targetIdx
}

func (o *Order) validateBilling(errs ValidationErrors) {
	billing := []struct {
		field, value string
	}{
		{"billing_name", o.BillingName},
		{"billing_email", o.BillingEmail},
		{"billing_address", o.BillingAddress},
		{"billing_postal", o.BillingPostal},
		{"billing_city", o.BillingCity},
		{"billing_country", o.BillingCountry},
		{"billing_phone", o.BillingPhone},
	}
	for _, b := range billing {
		if b.value == "" {
			errs.Add(b.field, "can't be blank")
		}
	}
}

func (o *Order) validateStudents(errs ValidationErrors) {
	if len(o.Students) == o.SumTickets() && o.studentsValid() {
		return
	}
	errs.Add("students", fmt.Sprintf("You need to provide details for all %d students.", o.SumTickets()))
}

func (o *Order) studentsValid() bool {
	for _, s := range o.Students {
		if !s.Valid() {
			return false
		}
	}
	return true
}

// ---------------- STATE ----------------

// Confirmed reports whether the order has been persisted with a
// confirmation timestamp.
func (o *Order) Confirmed() bool {
	return o.ID != 0 && o.ConfirmedAt != nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
