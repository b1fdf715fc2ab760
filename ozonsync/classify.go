package ozonsync

import (
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/marketsync_backend/models"
	"bitbucket.org/mmdatafocus/marketsync_backend/utils"
	"github.com/shopspring/decimal"
)

// Kind is the closed set of domain events a raw feed operation can become.
// Unrecognized upstream type tags classify as KindIgnored so new tags roll
// through the pipeline without crashing it.
type Kind int

const (
	KindIgnored Kind = iota
	KindDelivered
	KindCancelled
	KindReturned
	KindAcquiring
)

func (k Kind) String() string {
	switch k {
	case KindDelivered:
		return "delivered"
	case KindCancelled:
		return "cancelled"
	case KindReturned:
		return "returned"
	case KindAcquiring:
		return "acquiring"
	default:
		return "ignored"
	}
}

var operationKinds = map[string]Kind{
	"OperationAgentDeliveredToCustomer":             KindDelivered,
	"ClientReturnAgentOperation":                    KindCancelled,
	"OperationItemReturn":                           KindReturned,
	"OperationReturnGoodsFBSofRMS":                  KindReturned,
	"MarketplaceRedistributionOfAcquiringOperation": KindAcquiring,
}

// SyncedOperationTypes is the feed filter: only tags the classifier can place
// are requested from upstream.
func SyncedOperationTypes() []string {
	types := make([]string, 0, len(operationKinds))
	for tag := range operationKinds {
		types = append(types, tag)
	}
	return types
}

// Classify maps the upstream type tag to its event kind.
func Classify(op *FinanceOperation) Kind {
	return operationKinds[op.OperationType]
}

// transactionType renders the kind as the persisted type_of_transaction value.
func transactionType(kind Kind) string {
	switch kind {
	case KindDelivered:
		return models.TransactionDelivered
	case KindCancelled:
		return models.TransactionCancelled
	default:
		return ""
	}
}

// DeliverySchema is the closed routing tag for the posting detail endpoint.
// Anything outside the known set is SchemaOther and the operation is skipped.
type DeliverySchema int

const (
	SchemaOther DeliverySchema = iota
	SchemaFBO
	SchemaFBS
	SchemaRFBS
)

func (s DeliverySchema) String() string {
	switch s {
	case SchemaFBO:
		return "FBO"
	case SchemaFBS:
		return "FBS"
	case SchemaRFBS:
		return "RFBS"
	default:
		return "Other"
	}
}

func ParseDeliverySchema(raw string) DeliverySchema {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "FBO":
		return SchemaFBO
	case "FBS":
		return SchemaFBS
	case "RFBS":
		return SchemaRFBS
	default:
		return SchemaOther
	}
}

const (
	serviceReturnFlowLogistic = "MarketplaceServiceItemReturnFlowLogistic"

	serviceDirectFlowLogisticVDC = "MarketplaceServiceItemDirectFlowLogisticVDC"
	serviceDirectFlowLogistic    = "MarketplaceServiceItemDirectFlowLogistic"
)

// ReturnLogisticsCost extracts the return-flow logistics fee from a Returned
// operation's service lines. ok=false means the fee was not reported with this
// sighting; the cancelled row keeps its NULL cost until a later feed carries it.
func ReturnLogisticsCost(op *FinanceOperation) (decimal.Decimal, bool) {
	cost := decimal.Zero
	found := false
	for _, svc := range op.Services {
		if svc.Name == serviceReturnFlowLogistic {
			cost = utils.DecimalFromNumber(svc.Price).Round(2)
			found = true
		}
	}
	return cost, found
}

// PostingLogisticsFee sums the direct-flow logistics service lines of one
// operation. ok=false means the posting carried no logistics fee and the
// per-item cost stays NULL for later backfill.
func PostingLogisticsFee(op *FinanceOperation) (decimal.Decimal, bool) {
	fee := decimal.Zero
	found := false
	for _, svc := range op.Services {
		switch svc.Name {
		case serviceDirectFlowLogisticVDC, serviceDirectFlowLogistic:
			fee = fee.Add(utils.DecimalFromNumber(svc.Price))
			found = true
		}
	}
	return fee, found
}

// SplitAcquiring apportions an acquiring-fee operation evenly across its item
// list: one report line per item, cost = -round(amount/items, 2). An empty
// item list yields nothing.
func SplitAcquiring(clientId string, op *FinanceOperation) []models.MarketServiceReport {
	if len(op.Items) == 0 {
		return nil
	}

	amount := utils.DecimalFromNumber(op.Amount)
	cost := amount.Div(decimal.NewFromInt(int64(len(op.Items)))).Round(2).Neg()
	operationDate := accrualDate(op.OperationDate)

	entries := make([]models.MarketServiceReport, 0, len(op.Items))
	for _, item := range op.Items {
		entries = append(entries, models.MarketServiceReport{
			ClientId:      clientId,
			PostingNumber: op.Posting.PostingNumber,
			Sku:           item.Sku.String(),
			Service:       op.OperationTypeName,
			OperationDate: operationDate,
			Cost:          cost,
		})
	}
	return entries
}

// accrualDate truncates the feed's operation timestamp to its calendar day.
// The feed sends "2006-01-02 15:04:05"; some endpoints use RFC3339.
func accrualDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
		return t.Truncate(24 * time.Hour)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC().Truncate(24 * time.Hour)
	}
	return time.Time{}
}
