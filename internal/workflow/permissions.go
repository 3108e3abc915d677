package workflow

// Capability names a protected action. Values follow the "<area>.<verb>"
// permission naming used by the rbac middleware.
type Capability string

const (
	CapRequestsView      Capability = "vendor_requests.view"
	CapRequestsCreate    Capability = "vendor_requests.create"
	CapRequestsEditDraft Capability = "vendor_requests.edit_draft"
	CapRequestsSubmit    Capability = "vendor_requests.submit"
	CapRequestsCancel    Capability = "vendor_requests.cancel"
	CapBankingDetails    Capability = "vendor_requests.banking"
	CapReviewCompliance  Capability = "vendor_requests.review_compliance"
	CapReviewFinance     Capability = "vendor_requests.review_finance"
	CapReviewAdmin       Capability = "vendor_requests.review_admin"

	CapVendorsView Capability = "vendors.view"
	CapVendorsEdit Capability = "vendors.edit"

	CapDashboardView        Capability = "dashboard.view"
	CapPurchaseOrderCreate  Capability = "purchase_orders.create"
	CapPurchaseOrderApprove Capability = "purchase_orders.approve"
	CapContractCreate       Capability = "contracts.create"

	CapUsersManage Capability = "users.manage"
)

// grants lists the non-admin roles holding each capability. ADMIN holds all.
var grants = map[Capability][]Role{
	CapRequestsView:         {RoleDepartmentRequester, RoleFinanceApprover, RoleComplianceApprover},
	CapRequestsCreate:       {RoleDepartmentRequester},
	CapRequestsEditDraft:    {RoleDepartmentRequester},
	CapRequestsSubmit:       {RoleDepartmentRequester},
	CapRequestsCancel:       {RoleDepartmentRequester},
	CapBankingDetails:       {RoleFinanceApprover},
	CapReviewCompliance:     {RoleComplianceApprover},
	CapReviewFinance:        {RoleFinanceApprover},
	CapReviewAdmin:          nil,
	CapVendorsView:          {RoleDepartmentRequester, RoleFinanceApprover, RoleComplianceApprover},
	CapVendorsEdit:          {RoleComplianceApprover},
	CapDashboardView:        {RoleDepartmentRequester, RoleFinanceApprover, RoleComplianceApprover},
	CapPurchaseOrderCreate:  {RoleDepartmentRequester, RoleFinanceApprover},
	CapPurchaseOrderApprove: {RoleFinanceApprover},
	CapContractCreate:       {RoleComplianceApprover},
	CapUsersManage:          nil,
}

// Capabilities lists every known capability.
func Capabilities() []Capability {
	return []Capability{
		CapRequestsView, CapRequestsCreate, CapRequestsEditDraft, CapRequestsSubmit, CapRequestsCancel,
		CapBankingDetails, CapReviewCompliance, CapReviewFinance, CapReviewAdmin,
		CapVendorsView, CapVendorsEdit,
		CapDashboardView, CapPurchaseOrderCreate, CapPurchaseOrderApprove, CapContractCreate,
		CapUsersManage,
	}
}

// Allows reports whether role holds capability.
func Allows(role Role, c Capability) bool {
	if !role.Valid() {
		return false
	}
	if role == RoleAdmin {
		_, known := grants[c]
		return known
	}
	for _, r := range grants[c] {
		if r == role {
			return true
		}
	}
	return false
}

// CapabilitiesOf returns every capability held by role.
func CapabilitiesOf(role Role) []Capability {
	var out []Capability
	for _, c := range Capabilities() {
		if Allows(role, c) {
			out = append(out, c)
		}
	}
	return out
}

// Permissions is the flattened per-role view consumed by clients deciding
// what to show.
type Permissions struct {
	CreateRequest        bool `json:"createRequest"`
	EditDraft            bool `json:"editDraft"`
	SubmitRequest        bool `json:"submitRequest"`
	CancelRequest        bool `json:"cancelRequest"`
	AddBankingDetails    bool `json:"addBankingDetails"`
	ReviewCompliance     bool `json:"reviewCompliance"`
	ReviewFinance        bool `json:"reviewFinance"`
	ReviewAdmin          bool `json:"reviewAdmin"`
	ViewVendors          bool `json:"viewVendors"`
	EditVendors          bool `json:"editVendors"`
	ViewDashboard        bool `json:"viewDashboard"`
	CreatePurchaseOrder  bool `json:"createPurchaseOrder"`
	ApprovePurchaseOrder bool `json:"approvePurchaseOrder"`
	CreateContract       bool `json:"createContract"`
	ManageUsers          bool `json:"manageUsers"`
}

// PermissionsFor evaluates every capability for role.
func PermissionsFor(role Role) Permissions {
	return Permissions{
		CreateRequest:        Allows(role, CapRequestsCreate),
		EditDraft:            Allows(role, CapRequestsEditDraft),
		SubmitRequest:        Allows(role, CapRequestsSubmit),
		CancelRequest:        Allows(role, CapRequestsCancel),
		AddBankingDetails:    Allows(role, CapBankingDetails),
		ReviewCompliance:     Allows(role, CapReviewCompliance),
		ReviewFinance:        Allows(role, CapReviewFinance),
		ReviewAdmin:          Allows(role, CapReviewAdmin),
		ViewVendors:          Allows(role, CapVendorsView),
		EditVendors:          Allows(role, CapVendorsEdit),
		ViewDashboard:        Allows(role, CapDashboardView),
		CreatePurchaseOrder:  Allows(role, CapPurchaseOrderCreate),
		ApprovePurchaseOrder: Allows(role, CapPurchaseOrderApprove),
		CreateContract:       Allows(role, CapContractCreate),
		ManageUsers:          Allows(role, CapUsersManage),
	}
}
