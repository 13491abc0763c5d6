package agents

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/document"
)

const (
	netVATWarningThreshold = 100000.0
	unapprovedWarningRatio = 0.2
)

// Withholding form buckets.
const (
	FormPP30  = "PP30"
	FormPND3  = "PND3"
	FormPND53 = "PND53"
)

// TaxResult is the tax aggregation handler output payload.
type TaxResult struct {
	Period         string             `json:"period"`
	OutputVAT      float64            `json:"outputVat"`
	InputVAT       float64            `json:"inputVat"`
	NetVAT         float64            `json:"netVat"`
	WHTByForm      map[string]float64 `json:"whtByForm"`
	SuggestedForms []string           `json:"suggestedForms"`
	DocumentCount  int                `json:"documentCount"`
	ApprovedCount  int                `json:"approvedCount"`
}

// TaxHandler aggregates VAT and withholding figures for a reporting period.
type TaxHandler struct {
	logger zerolog.Logger
}

// NewTaxHandler creates the tax aggregation handler.
func NewTaxHandler(logger zerolog.Logger) *TaxHandler {
	return &TaxHandler{logger: logger.With().Str("handler", "tax").Logger()}
}

func (h *TaxHandler) CanHandle(in Input) bool {
	_, ok := in.(*TaxInput)
	return ok
}

func (h *TaxHandler) RequiredPermissions() []string {
	return []string{"documents:read", "clients:read"}
}

// Execute sums output VAT over sale documents, input VAT over VAT-claimable
// documents, and withholding by form code, then suggests the forms whose
// buckets are non-zero. Confidence is the approved share of the document set.
func (h *TaxHandler) Execute(ctx context.Context, in Input, ec *Context) (*Output, error) {
	input, ok := in.(*TaxInput)
	if !ok {
		return nil, fmt.Errorf("tax handler received %T", in)
	}
	if len(ec.Documents) == 0 {
		return failure("no documents in the reporting period"), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &TaxResult{
		Period:        input.Period,
		WHTByForm:     make(map[string]float64),
		DocumentCount: len(ec.Documents),
	}

	for _, d := range ec.Documents {
		if d.Status != document.StatusApproved && d.Status != document.StatusPosted {
			continue
		}
		result.ApprovedCount++
		if d.VATAmount == 0 && d.WHTAmount == 0 {
			continue
		}
		if d.VATAmount != 0 {
			if d.Type.IsSale() {
				result.OutputVAT += d.VATAmount
			} else if d.VATClaimable {
				result.InputVAT += d.VATAmount
			}
		}
		if d.WHTAmount != 0 {
			form := d.WHTFormCode
			if form == "" {
				form = FormPND3
			}
			result.WHTByForm[form] += d.WHTAmount
		}
	}
	result.NetVAT = result.OutputVAT - result.InputVAT

	if result.OutputVAT != 0 || result.InputVAT != 0 {
		result.SuggestedForms = append(result.SuggestedForms, FormPP30)
	}
	forms := make([]string, 0, len(result.WHTByForm))
	for form, amount := range result.WHTByForm {
		if amount != 0 {
			forms = append(forms, form)
		}
	}
	sort.Strings(forms)
	result.SuggestedForms = append(result.SuggestedForms, forms...)

	out := &Output{
		Success:    true,
		Confidence: 100 * float64(result.ApprovedCount) / float64(result.DocumentCount),
		Result:     result,
	}
	if math.Abs(result.NetVAT) > netVATWarningThreshold {
		out.Warnings = append(out.Warnings, fmt.Sprintf("net VAT %.2f exceeds review threshold", result.NetVAT))
	}
	if unapproved := result.DocumentCount - result.ApprovedCount; float64(unapproved) > unapprovedWarningRatio*float64(result.DocumentCount) {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%d of %d documents still unapproved", unapproved, result.DocumentCount))
	}
	for _, form := range result.SuggestedForms {
		out.Actions = append(out.Actions, SuggestedAction{
			Type:        "generate_form",
			Description: fmt.Sprintf("generate %s for period %s", form, input.Period),
		})
	}

	ec.log("tax_aggregated", fmt.Sprintf("period %s: net VAT %.2f, %d forms", input.Period, result.NetVAT, len(result.SuggestedForms)))
	h.logger.Info().
		Str("period", input.Period).
		Float64("net_vat", result.NetVAT).
		Int("forms", len(result.SuggestedForms)).
		Msg("tax aggregation complete")
	return out, nil
}
