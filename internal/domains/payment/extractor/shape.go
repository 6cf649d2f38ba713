package extractor

import "payment-reconciler/internal/domains/payment/model"

// Field names a piece of rail/instrument evidence.
type Field int

const (
	FieldUPITransactionID Field = iota
	FieldUTR
	FieldAccountHolderName
	FieldVPA
	FieldAccountType
	FieldMaskedAccountNumber
)

// FieldResolver answers one location in the payload.
type FieldResolver interface {
	Resolve(f Field) (string, bool)
}

type ShapeKind string

const (
	KindSimple ShapeKind = "simple"
	KindSplit  ShapeKind = "split"
)

// PaymentShape is the variant of a payment attempt. Scopes are ordered
// most-specific first; fallback chains walk them in that order.
type PaymentShape interface {
	Kind() ShapeKind
	Scopes() []FieldResolver
	sealed()
}

// ShapeOf classifies an attempt. A nil attempt yields a shape with no evidence.
func ShapeOf(a *model.PaymentAttempt) PaymentShape {
	if a == nil {
		return simplePayment{}
	}
	if len(a.SplitInstruments) > 0 {
		return splitPayment{
			top:     railScope{rail: a.Rail, instrument: a.Instrument},
			entries: orderSplitEntries(a.SplitInstruments),
		}
	}
	return simplePayment{top: railScope{rail: a.Rail, instrument: a.Instrument}}
}

// =====================================================
// SIMPLE PAYMENT
// =====================================================

type simplePayment struct {
	top railScope
}

func (simplePayment) Kind() ShapeKind { return KindSimple }
func (s simplePayment) Scopes() []FieldResolver {
	return []FieldResolver{s.top}
}
func (simplePayment) sealed() {}

// =====================================================
// SPLIT PAYMENT
// =====================================================

type splitPayment struct {
	top     railScope
	entries []model.SplitInstrument
}

func (splitPayment) Kind() ShapeKind { return KindSplit }
func (s splitPayment) Scopes() []FieldResolver {
	return []FieldResolver{splitScope(s.entries), s.top}
}
func (splitPayment) sealed() {}

// orderSplitEntries puts the primary entry first: the first one carrying
// bank or VPA detail, else index 0. The rest keep their original order.
func orderSplitEntries(entries []model.SplitInstrument) []model.SplitInstrument {
	primary := 0
	for i, e := range entries {
		if e.HasDetail() {
			primary = i
			break
		}
	}
	out := make([]model.SplitInstrument, 0, len(entries))
	out = append(out, entries[primary])
	out = append(out, entries[:primary]...)
	out = append(out, entries[primary+1:]...)
	return out
}

// splitScope resolves each field from the first entry that has it.
type splitScope []model.SplitInstrument

func (s splitScope) Resolve(f Field) (string, bool) {
	for _, e := range s {
		if v, ok := (railScope{rail: e.Rail, instrument: e.Instrument}).Resolve(f); ok {
			return v, true
		}
	}
	return "", false
}

// =====================================================
// RAIL + INSTRUMENT
// =====================================================

type railScope struct {
	rail       *model.Rail
	instrument *model.Instrument
}

func (s railScope) Resolve(f Field) (string, bool) {
	var v string
	switch f {
	case FieldUPITransactionID:
		if s.rail != nil {
			v = s.rail.UPITransactionID
		}
	case FieldUTR:
		if s.rail != nil {
			v = s.rail.UTR
		}
	case FieldVPA:
		if s.rail != nil {
			v = s.rail.VPA
		}
	case FieldAccountHolderName:
		if s.instrument != nil {
			v = s.instrument.AccountHolderName
		}
	case FieldAccountType:
		if s.instrument != nil {
			v = s.instrument.AccountType
		}
	case FieldMaskedAccountNumber:
		if s.instrument != nil {
			v = s.instrument.MaskedAccountNumber
		}
	}
	return v, v != ""
}

// firstOf walks fields in order and, for each, every scope in order.
func firstOf(shape PaymentShape, fields ...Field) string {
	scopes := shape.Scopes()
	for _, f := range fields {
		for _, s := range scopes {
			if v, ok := s.Resolve(f); ok {
				return v
			}
		}
	}
	return ""
}
