package booking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/iliyamo/table-reservation/internal/model"
)

const (
	DefaultMaxPartySize = 100
	DefaultMaxDaysAhead = 30
	MaxNoteLength       = 255
)

// Rules are the request limits that do not need the store.
type Rules struct {
	MaxPartySize int
	MaxDaysAhead int
	// Now is the clock used for the booking window.  Defaults to time.Now.
	Now func() time.Time
}

func (r Rules) withDefaults() Rules {
	if r.MaxPartySize <= 0 {
		r.MaxPartySize = DefaultMaxPartySize
	}
	if r.MaxDaysAhead <= 0 {
		r.MaxDaysAhead = DefaultMaxDaysAhead
	}
	if r.Now == nil {
		r.Now = time.Now
	}
	return r
}

// CreateInput is a new reservation request.
type CreateInput struct {
	RequesterID uuid.UUID    `json:"-"`
	VenueID     uuid.UUID    `json:"venue_id" validate:"required"`
	Date        model.Date   `json:"date"`
	PartySize   int          `json:"party_size" validate:"min=1"`
	Note        string       `json:"note" validate:"max=255"`
	Status      model.Status `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED"`
	Pairs       []model.Pair `json:"pairs" validate:"dive"`
}

type inputValidator struct {
	validate *validator.Validate
	rules    Rules
}

func newInputValidator(rules Rules) *inputValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &inputValidator{validate: v, rules: rules.withDefaults()}
}

func (v *inputValidator) today() model.Date { return model.NewDate(v.rules.Now()) }

// checkCreate validates the shape of a create request.  An empty pair list
// is left for the pipeline, which reports it as an empty selection.
func (v *inputValidator) checkCreate(in *CreateInput) error {
	if err := v.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return translate(verrs)
		}
		return invalidInput("", err.Error())
	}
	if in.Date.IsZero() {
		return invalidInput("date", "date is required")
	}
	if err := v.checkDate(in.Date); err != nil {
		return err
	}
	return v.checkPartySize(in.PartySize)
}

func (v *inputValidator) checkDate(d model.Date) error {
	today := v.today()
	last := today.AddDays(v.rules.MaxDaysAhead)
	if d.Before(today) || d.After(last) {
		return invalidInput("date", fmt.Sprintf("date must be between %s and %s", today, last))
	}
	return nil
}

func (v *inputValidator) checkPartySize(n int) error {
	if n < 1 || n > v.rules.MaxPartySize {
		return invalidInput("party_size", fmt.Sprintf("party_size must be between 1 and %d", v.rules.MaxPartySize))
	}
	return nil
}

func checkNote(note string) error {
	if len([]rune(note)) > MaxNoteLength {
		return invalidInput("note", fmt.Sprintf("note must be at most %d characters", MaxNoteLength))
	}
	return nil
}

func checkPairIDs(pairs []model.Pair) error {
	for i, p := range pairs {
		if p.ResourceID == uuid.Nil || p.SlotID == uuid.Nil {
			return invalidInput(fmt.Sprintf("pairs[%d]", i), "resource_id and slot_id are required")
		}
	}
	return nil
}

// translate turns the first validator error into a Failure.  Struct field
// order makes the choice deterministic.
func translate(errs validator.ValidationErrors) error {
	if len(errs) == 0 {
		return nil
	}
	err := errs[0]
	field := strings.TrimPrefix(err.Namespace(), "CreateInput.")
	var msg string
	switch err.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "min":
		msg = fmt.Sprintf("%s must be at least %s", field, err.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, err.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, err.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return invalidInput(field, msg)
}
