package domain

import (
	"time"
)

// SubscriptionStatus статус подписки, зеркалирует жизненный цикл Stripe
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// GrantsAccess проверяет, дает ли статус подписки доступ к платным функциям
func (s SubscriptionStatus) GrantsAccess() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// UserSubscription представляет запись подписки пользователя.
// Документ хранится по ключу userID и обновляется только merge-записями:
// поля, не затронутые событием, сохраняют прежние значения.
type UserSubscription struct {
	UserID               string             `json:"userId" firestore:"-"`
	Active               bool               `json:"active" firestore:"active"`
	Pro                  bool               `json:"pro" firestore:"pro"`
	Agent                bool               `json:"agent" firestore:"agent"`
	SubscriptionStatus   SubscriptionStatus `json:"subscriptionStatus" firestore:"subscriptionStatus"`
	StripeCustomerID     string             `json:"stripeCustomerId" firestore:"stripeCustomerId"`
	StripeSubscriptionID string             `json:"stripeSubscriptionId" firestore:"stripeSubscriptionId"`
	LastPaymentDate      *time.Time         `json:"lastPaymentDate,omitempty" firestore:"lastPaymentDate"`
	PaymentFailedAt      *time.Time         `json:"paymentFailedAt,omitempty" firestore:"paymentFailedAt"`
	UpdatedAt            time.Time          `json:"updatedAt" firestore:"updatedAt"`
}

// SubscriptionPatch описывает частичное обновление записи подписки.
// Применяются только ненулевые указатели, остальные поля не трогаются.
type SubscriptionPatch struct {
	Active               *bool
	Pro                  *bool
	Agent                *bool
	SubscriptionStatus   *SubscriptionStatus
	StripeCustomerID     *string
	StripeSubscriptionID *string
	LastPaymentDate      *time.Time
	PaymentFailedAt      *time.Time
	UpdatedAt            time.Time
}

// Fields возвращает патч в виде карты полей документа для merge-записи
func (p SubscriptionPatch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})

	if p.Active != nil {
		fields["active"] = *p.Active
	}
	if p.Pro != nil {
		fields["pro"] = *p.Pro
	}
	if p.Agent != nil {
		fields["agent"] = *p.Agent
	}
	if p.SubscriptionStatus != nil {
		fields["subscriptionStatus"] = string(*p.SubscriptionStatus)
	}
	if p.StripeCustomerID != nil {
		fields["stripeCustomerId"] = *p.StripeCustomerID
	}
	if p.StripeSubscriptionID != nil {
		fields["stripeSubscriptionId"] = *p.StripeSubscriptionID
	}
	if p.LastPaymentDate != nil {
		fields["lastPaymentDate"] = *p.LastPaymentDate
	}
	if p.PaymentFailedAt != nil {
		fields["paymentFailedAt"] = *p.PaymentFailedAt
	}
	fields["updatedAt"] = p.UpdatedAt

	return fields
}

// Apply применяет патч к записи в памяти с той же merge-семантикой
func (p SubscriptionPatch) Apply(rec *UserSubscription) {
	if p.Active != nil {
		rec.Active = *p.Active
	}
	if p.Pro != nil {
		rec.Pro = *p.Pro
	}
	if p.Agent != nil {
		rec.Agent = *p.Agent
	}
	if p.SubscriptionStatus != nil {
		rec.SubscriptionStatus = *p.SubscriptionStatus
	}
	if p.StripeCustomerID != nil {
		rec.StripeCustomerID = *p.StripeCustomerID
	}
	if p.StripeSubscriptionID != nil {
		rec.StripeSubscriptionID = *p.StripeSubscriptionID
	}
	if p.LastPaymentDate != nil {
		rec.LastPaymentDate = p.LastPaymentDate
	}
	if p.PaymentFailedAt != nil {
		rec.PaymentFailedAt = p.PaymentFailedAt
	}
	rec.UpdatedAt = p.UpdatedAt
}

// Bool возвращает указатель на bool для построения патчей
func Bool(v bool) *bool { return &v }

// String возвращает указатель на string для построения патчей
func String(v string) *string { return &v }

// Status возвращает указатель на SubscriptionStatus для построения патчей
func Status(v SubscriptionStatus) *SubscriptionStatus { return &v }
