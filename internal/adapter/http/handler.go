package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/billiq/internal/app"
	"github.com/neomorfeo/billiq/internal/domain"
)

// CapsBody is the API representation of a set of caps. Null means no
// cap from the resolved source.
type CapsBody struct {
	ActiveUsers      *int64 `json:"active_users" doc:"Active-user (AV30) cap"`
	Seats            *int64 `json:"seats" doc:"Admin seat cap"`
	StorageMB        *int64 `json:"storage_mb" doc:"Storage cap in MB"`
	Sites            *int64 `json:"sites" doc:"Site cap"`
	MessagesPerMonth *int64 `json:"messages_per_month" doc:"Monthly messaging cap"`
}

func toCapsBody(c domain.Caps) CapsBody {
	return CapsBody{
		ActiveUsers:      c.ActiveUsers,
		Seats:            c.Seats,
		StorageMB:        c.StorageMB,
		Sites:            c.Sites,
		MessagesPerMonth: c.MessagesPerMonth,
	}
}

// PreviewBody is the API representation of a checkout preview.
type PreviewBody struct {
	PlanCode  string   `json:"plan_code"`
	Base      CapsBody `json:"base"`
	Addons    CapsBody `json:"addons"`
	Effective CapsBody `json:"effective"`
	Warnings  []string `json:"warnings"`
}

func toPreviewBody(p domain.Preview) PreviewBody {
	warnings := p.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return PreviewBody{
		PlanCode:  p.PlanCode,
		Base:      toCapsBody(p.Base),
		Addons:    toCapsBody(p.Addons),
		Effective: toCapsBody(p.Effective),
		Warnings:  warnings,
	}
}

// AddonsBody is the add-on quantities of a plan selection.
type AddonsBody struct {
	AV30Blocks     int64 `json:"av30_blocks,omitempty" doc:"Blocks of 25 extra active users"`
	StorageBlocks  int64 `json:"storage_blocks,omitempty" doc:"Blocks of 5 GB extra storage"`
	ExtraSites     int64 `json:"extra_sites,omitempty" doc:"Extra sites"`
	MessagingPacks int64 `json:"messaging_packs,omitempty" doc:"Packs of 500 extra messages/month"`
}

func (a AddonsBody) selection() domain.AddonSelection {
	return domain.AddonSelection{
		AV30Blocks:     a.AV30Blocks,
		StorageBlocks:  a.StorageBlocks,
		ExtraSites:     a.ExtraSites,
		MessagingPacks: a.MessagingPacks,
	}
}

// --- Preview ---

type PreviewInput struct {
	PlanCode       string `query:"plan_code" required:"true" doc:"Plan code to preview"`
	AV30Blocks     int64  `query:"av30_blocks" required:"false" doc:"Blocks of 25 extra active users"`
	StorageBlocks  int64  `query:"storage_blocks" required:"false" doc:"Blocks of 5 GB extra storage"`
	ExtraSites     int64  `query:"extra_sites" required:"false" doc:"Extra sites"`
	MessagingPacks int64  `query:"messaging_packs" required:"false" doc:"Packs of 500 extra messages/month"`
}

type PreviewOutput struct {
	Body PreviewBody
}

// --- Checkout ---

type CheckoutInput struct {
	Body struct {
		OrgID      string     `json:"org_id" minLength:"1" doc:"Organization ID"`
		TenantID   string     `json:"tenant_id,omitempty" doc:"Tenant ID"`
		PlanCode   string     `json:"plan_code" minLength:"1" doc:"Plan code"`
		Addons     AddonsBody `json:"addons,omitempty" doc:"Add-on quantities"`
		SuccessURL string     `json:"success_url,omitempty" format:"uri" doc:"Redirect after successful payment"`
		CancelURL  string     `json:"cancel_url,omitempty" format:"uri" doc:"Redirect after abandoned payment"`
	}
}

type CheckoutOutput struct {
	Body struct {
		OrderID    string      `json:"order_id" doc:"Pending order ID"`
		Preview    PreviewBody `json:"preview"`
		Provider   string      `json:"provider" doc:"Payment provider"`
		SessionID  string      `json:"session_id" doc:"Provider checkout session handle"`
		SessionURL string      `json:"session_url" doc:"Redirect URL for the buyer"`
	}
}

// --- Webhook ---

type WebhookInput struct {
	Provider string `path:"provider" doc:"Payment provider name"`

	StripeSignature  string `header:"Stripe-Signature" required:"false"`
	FakepaySignature string `header:"X-Fakepay-Signature" required:"false"`

	RawBody []byte
}

func (i *WebhookInput) signature() string {
	if i.StripeSignature != "" {
		return i.StripeSignature
	}
	return i.FakepaySignature
}

type WebhookOutput struct {
	Body struct {
		Status  string `json:"status" enum:"ok,ignored_duplicate,ignored_unknown" doc:"Reconciliation outcome"`
		EventID string `json:"event_id" doc:"Provider-assigned event ID"`
	}
}

// --- Entitlements ---

type EntitlementsInput struct {
	OrgID string `path:"orgID" doc:"Organization ID"`
}

type UsageBody struct {
	ActiveUsers30d    int64     `json:"active_users_30d"`
	StorageMB         int64     `json:"storage_mb"`
	MessagesThisMonth int64     `json:"messages_this_month"`
	CalculatedAt      time.Time `json:"calculated_at"`
}

type EnforcementBody struct {
	Tier        string     `json:"tier" enum:"ok,soft_cap,grace,hard_cap"`
	Reason      string     `json:"reason"`
	ActiveUsers int64      `json:"active_users"`
	Cap         *int64     `json:"cap"`
	GraceUntil  *time.Time `json:"grace_until"`
}

type EntitlementsOutput struct {
	Body struct {
		OrgID              string          `json:"org_id"`
		Caps               CapsBody        `json:"caps"`
		Source             string          `json:"source" doc:"Which layer supplied the caps"`
		PlanCode           string          `json:"plan_code,omitempty"`
		SubscriptionStatus string          `json:"subscription_status,omitempty"`
		Usage              *UsageBody      `json:"usage"`
		Enforcement        EnforcementBody `json:"enforcement"`
	}
}

// --- Orders ---

type ListOrdersInput struct {
	OrgID string `path:"orgID" doc:"Organization ID"`
}

type OrderBody struct {
	ID            string    `json:"id"`
	PlanCode      string    `json:"plan_code"`
	ProjectedCaps CapsBody  `json:"projected_caps"`
	Provider      string    `json:"provider,omitempty"`
	CheckoutRef   string    `json:"checkout_ref,omitempty"`
	Status        string    `json:"status"`
	Warnings      []string  `json:"warnings"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ListOrdersOutput struct {
	Body []OrderBody
}

// Register adds all billing API routes to the Huma API. providerName is
// the configured payment provider; webhook deliveries addressed to any
// other provider are rejected.
func Register(api huma.API, svc *app.BillingService, providerName string) {
	huma.Register(api, huma.Operation{
		OperationID: "preview-plan",
		Method:      http.MethodGet,
		Path:        "/api/v1/billing/preview",
		Summary:     "Preview effective caps for a plan and add-ons",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, input *PreviewInput) (*PreviewOutput, error) {
		preview := domain.PreviewPlan(input.PlanCode, domain.AddonSelection{
			AV30Blocks:     input.AV30Blocks,
			StorageBlocks:  input.StorageBlocks,
			ExtraSites:     input.ExtraSites,
			MessagingPacks: input.MessagingPacks,
		})
		return &PreviewOutput{Body: toPreviewBody(preview)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-checkout",
		Method:      http.MethodPost,
		Path:        "/api/v1/billing/checkout",
		Summary:     "Start a checkout for a plan selection",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, input *CheckoutInput) (*CheckoutOutput, error) {
		resp, err := svc.Checkout(ctx, app.CheckoutRequest{
			OrgID:      input.Body.OrgID,
			TenantID:   input.Body.TenantID,
			PlanCode:   input.Body.PlanCode,
			Addons:     input.Body.Addons.selection(),
			SuccessURL: input.Body.SuccessURL,
			CancelURL:  input.Body.CancelURL,
		})
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &CheckoutOutput{}
		out.Body.OrderID = resp.OrderID
		out.Body.Preview = toPreviewBody(resp.Preview)
		out.Body.Provider = resp.Session.Provider
		out.Body.SessionID = resp.Session.SessionID
		out.Body.SessionURL = resp.Session.SessionURL
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:      "billing-webhook",
		Method:           http.MethodPost,
		Path:             "/api/v1/billing/webhooks/{provider}",
		Summary:          "Receive a payment provider webhook",
		Tags:             []string{"Billing"},
		SkipValidateBody: true,
	}, func(ctx context.Context, input *WebhookInput) (*WebhookOutput, error) {
		if input.Provider != providerName {
			return nil, huma.Error404NotFound("unknown payment provider")
		}

		result, err := svc.HandleWebhook(ctx, input.RawBody, input.signature())
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &WebhookOutput{}
		out.Body.Status = string(result.Status)
		out.Body.EventID = result.EventID
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-entitlements",
		Method:      http.MethodGet,
		Path:        "/api/v1/orgs/{orgID}/entitlements",
		Summary:     "Resolve an org's effective caps, usage, and enforcement status",
		Tags:        []string{"Entitlements"},
	}, func(ctx context.Context, input *EntitlementsInput) (*EntitlementsOutput, error) {
		resolved, err := svc.Resolve(ctx, input.OrgID)
		if err != nil {
			return nil, toHumaError(err)
		}
		enforcement, err := svc.CheckUsage(ctx, input.OrgID)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &EntitlementsOutput{}
		out.Body.OrgID = resolved.OrgID
		out.Body.Caps = toCapsBody(resolved.Caps)
		out.Body.Source = string(resolved.Source)
		out.Body.PlanCode = resolved.PlanCode
		out.Body.SubscriptionStatus = string(resolved.SubscriptionStatus)
		if resolved.Usage != nil {
			out.Body.Usage = &UsageBody{
				ActiveUsers30d:    resolved.Usage.ActiveUsers30d,
				StorageMB:         resolved.Usage.StorageMB,
				MessagesThisMonth: resolved.Usage.MessagesThisMonth,
				CalculatedAt:      resolved.Usage.CalculatedAt,
			}
		}
		out.Body.Enforcement = EnforcementBody{
			Tier:        string(enforcement.Tier),
			Reason:      enforcement.Reason,
			ActiveUsers: enforcement.ActiveUsers,
			Cap:         enforcement.Cap,
			GraceUntil:  enforcement.GraceUntil,
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-orders",
		Method:      http.MethodGet,
		Path:        "/api/v1/orgs/{orgID}/orders",
		Summary:     "List an org's checkout orders",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, input *ListOrdersInput) (*ListOrdersOutput, error) {
		orders, err := svc.ListOrders(ctx, input.OrgID)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]OrderBody, len(orders))
		for i, order := range orders {
			warnings := order.Warnings
			if warnings == nil {
				warnings = []string{}
			}
			resp[i] = OrderBody{
				ID:            order.ID,
				PlanCode:      order.PlanCode,
				ProjectedCaps: toCapsBody(order.ProjectedCaps),
				Provider:      order.Provider,
				CheckoutRef:   order.CheckoutRef,
				Status:        string(order.Status),
				Warnings:      warnings,
				CreatedAt:     order.CreatedAt,
				UpdatedAt:     order.UpdatedAt,
			}
		}
		return &ListOrdersOutput{Body: resp}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrBadSignature) {
		return huma.Error401Unauthorized("webhook signature verification failed")
	}

	var malformed *domain.MalformedEventError
	if errors.As(err, &malformed) {
		return huma.Error400BadRequest(malformed.Error())
	}

	if errors.Is(err, domain.ErrOrderNotFound) {
		return huma.Error404NotFound("pending order not found")
	}

	var transition *domain.OrderTransitionError
	if errors.As(err, &transition) {
		return huma.Error422UnprocessableEntity(transition.Error())
	}

	var hardCap *domain.HardCapExceededError
	if errors.As(err, &hardCap) {
		return huma.Error403Forbidden(hardCap.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
