package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/payment"
	"ms-registration/internal/pricing"
)

// Identifier generation retries on collision, but not forever.
const maxIdentifierAttempts = 5

var (
	ErrPaymentExists     = errors.New("payment already created for this order")
	ErrPaymentInProgress = errors.New("payment creation already in progress")
	ErrOrderInvalid      = errors.New("order is not valid for checkout")
	ErrOrderNotPaid      = errors.New("order has not been paid")
)

type DBLayer interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByIdentifier(ctx context.Context, identifier string) (*models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	IdentifierExists(ctx context.Context, identifier string) (bool, error)
	UpsertStudent(ctx context.Context, student *models.Student) error
}

type DiscountStore interface {
	// FindActiveByCode returns ErrDiscountNotFound for unknown or
	// inactive codes.
	FindActiveByCode(ctx context.Context, code string) (*models.DiscountCode, error)
}

// ErrDiscountNotFound is the store's "no such code" answer; it maps to a
// promo_code validation error, not a failure.
var ErrDiscountNotFound = errors.New("discount code not found")

// PaymentLock serializes payment creation per order identifier.
type PaymentLock interface {
	LockPayment(identifier string) (bool, error)
	UnlockPayment(identifier string) error
}

type EventPublisher interface {
	PublishOrderConfirmed(order models.Order) error
	PublishOrderPaid(order models.Order) error
}

// TicketIssuer creates the attendee tickets once an order is paid.
type TicketIssuer interface {
	IssueForOrder(ctx context.Context, order *models.Order) ([]models.Ticket, error)
}

type OrderService struct {
	DB        DBLayer
	Discounts DiscountStore
	Gateway   payment.Gateway
	Lock      PaymentLock
	Kafka     EventPublisher
	Tickets   TicketIssuer

	Table       pricing.Table
	Description string

	logger *logger.Logger
}

func NewOrderService(db DBLayer, discounts DiscountStore, gateway payment.Gateway,
	lock PaymentLock, kafka EventPublisher, tickets TicketIssuer,
	table pricing.Table, description string) *OrderService {
	return &OrderService{
		DB:          db,
		Discounts:   discounts,
		Gateway:     gateway,
		Lock:        lock,
		Kafka:       kafka,
		Tickets:     tickets,
		Table:       table,
		Description: description,
		logger:      logger.NewLogger(),
	}
}

// ---------------- ORDERS ----------------

// CreateOrder starts a new checkout with a zero cart and a fresh unique
// identifier.
func (s *OrderService) CreateOrder(ctx context.Context) (*models.Order, error) {
	o := models.NewOrder(s.Table)

	identifier, err := s.generateIdentifier(ctx)
	if err != nil {
		return nil, err
	}
	o.Identifier = identifier

	if err := s.DB.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.LogOrder("CREATE", o.Identifier, "order created")
	return o, nil
}

// generateIdentifier produces a token not yet taken by any persisted
// order. Collisions regenerate silently up to the attempt cap; the
// storage layer's unique index backstops the remaining race.
func (s *OrderService) generateIdentifier(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxIdentifierAttempts; attempt++ {
		identifier := uuid.NewString()
		exists, err := s.DB.IdentifierExists(ctx, identifier)
		if err != nil {
			return "", fmt.Errorf("identifier uniqueness check failed: %w", err)
		}
		if !exists {
			return identifier, nil
		}
		s.logger.Warn("ORDER", fmt.Sprintf("Identifier collision on %s, regenerating", identifier))
	}
	return "", fmt.Errorf("could not generate a unique identifier in %d attempts", maxIdentifierAttempts)
}

func (s *OrderService) GetOrder(ctx context.Context, identifier string) (*models.Order, error) {
	o, err := s.DB.GetOrderByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("order %s not found: %w", identifier, err)
	}
	return o, nil
}

// ---------------- VALIDATION ----------------

// resolvePromoCode looks the typed promo code up and attaches the
// matching discount. Unknown codes become a promo_code validation error;
// a blank code is simply skipped. Re-resolving the same code is a no-op.
func (s *OrderService) resolvePromoCode(ctx context.Context, o *models.Order) (models.ValidationErrors, error) {
	errs := models.NewValidationErrors()
	if o.PromoCode == "" {
		return errs, nil
	}

	code, err := s.Discounts.FindActiveByCode(ctx, o.PromoCode)
	if errors.Is(err, ErrDiscountNotFound) {
		errs.Add("promo_code", "is not valid.")
		return errs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("discount lookup failed: %w", err)
	}

	o.DiscountCode = code
	o.DiscountCodeID = code.ID
	return errs, nil
}

// Validate runs the step-gated entity validations plus promo-code
// resolution against the order's current cursor.
func (s *OrderService) Validate(ctx context.Context, o *models.Order) (models.ValidationErrors, error) {
	errs, err := s.resolvePromoCode(ctx, o)
	if err != nil {
		return nil, err
	}
	errs.Merge(o.Validate(s.Table))
	return errs, nil
}

// AllValid pre-flights the whole wizard: promo resolution once, then
// every step validated independently.
func (s *OrderService) AllValid(ctx context.Context, o *models.Order) (bool, error) {
	promoErrs, err := s.resolvePromoCode(ctx, o)
	if err != nil {
		return false, err
	}
	if promoErrs.Any() {
		return false, nil
	}
	return o.AllStepsValid(s.Table), nil
}

// ---------------- WIZARD ----------------

// StepForm carries one wizard step's submission. Only the fields relevant
// to the submitted step are applied.
type StepForm struct {
	Step          string          `json:"step,omitempty"`
	Cart          models.Cart     `json:"cart,omitempty"`
	Billing       *BillingForm    `json:"billing,omitempty"`
	PromoCode     string          `json:"promo_code,omitempty"`
	TermsAccepted *bool           `json:"terms_accepted,omitempty"`
	Student       *models.Student `json:"student,omitempty"`
}

type BillingForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Postal  string `json:"postal"`
	City    string `json:"city"`
	Country string `json:"country"`
	Phone   string `json:"phone"`
}

// UpdateStep applies a step submission, validates at that step, and on
// success persists the order and advances the cursor. Validation
// failures come back as field errors with nothing persisted.
func (s *OrderService) UpdateStep(ctx context.Context, identifier string, form StepForm) (*models.Order, models.ValidationErrors, error) {
	o, err := s.GetOrder(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}

	if form.Step != "" {
		if err := o.SetCurrentStep(form.Step); err != nil {
			return nil, nil, err
		}
	}

	s.applyForm(o, form)

	errs, err := s.Validate(ctx, o)
	if err != nil {
		return nil, nil, err
	}
	if errs.Any() {
		s.logger.LogOrder("UPDATE", o.Identifier, fmt.Sprintf("step %s rejected: %d invalid fields", o.CurrentStep(), len(errs)))
		return o, errs, nil
	}

	if form.Student != nil {
		form.Student.OrderID = o.ID
		if err := s.DB.UpsertStudent(ctx, form.Student); err != nil {
			return nil, nil, fmt.Errorf("failed to save student: %w", err)
		}
	}
	if err := s.DB.UpdateOrder(ctx, o); err != nil {
		return nil, nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.logger.LogOrder("UPDATE", o.Identifier, fmt.Sprintf("step %s completed", o.CurrentStep()))
	if !o.LastStep() {
		o.NextStep()
	}
	return o, errs, nil
}

// applyForm copies the submitted fields relevant to the current step onto
// the order.
func (s *OrderService) applyForm(o *models.Order, form StepForm) {
	switch step := o.CurrentStep(); {
	case step == models.StepTickets:
		if form.Cart != nil {
			o.Cart = form.Cart
		}
	case step == models.StepDetails:
		if form.Billing != nil {
			o.BillingName = form.Billing.Name
			o.BillingEmail = form.Billing.Email
			o.BillingAddress = form.Billing.Address
			o.BillingPostal = form.Billing.Postal
			o.BillingCity = form.Billing.City
			o.BillingCountry = form.Billing.Country
			o.BillingPhone = form.Billing.Phone
		}
		if form.TermsAccepted != nil {
			o.TermsAccepted = *form.TermsAccepted
		}
		o.PromoCode = form.PromoCode
	case step == models.StepConfirmation:
		// Nothing to apply; the confirmation step only re-validates.
	default:
		if form.Student != nil {
			s.applyStudent(o, form.Student)
		}
	}
}

// applyStudent slots the submitted attendee into the order's collection
// at its wizard position.
func (s *OrderService) applyStudent(o *models.Order, student *models.Student) {
	for i, existing := range o.Students {
		if existing.Position == student.Position {
			student.ID = existing.ID
			o.Students[i] = student
			return
		}
	}
	o.Students = append(o.Students, student)
}

// Navigate moves the wizard cursor without applying any fields. The
// cursor is transient, so nothing is persisted.
func (s *OrderService) Navigate(ctx context.Context, identifier, from, direction string) (*models.Order, error) {
	o, err := s.GetOrder(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if from != "" {
		if err := o.SetCurrentStep(from); err != nil {
			return nil, err
		}
	}

	switch direction {
	case "previous":
		o.PreviousStep()
	default:
		o.NextStep()
	}
	return o, nil
}
