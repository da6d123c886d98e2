package store

// Record keys. They match the local-storage keys of the browser application
// so that exported data can be imported unchanged.
const (
	KeyPatients         = "hms_patients_v1"
	KeyAppointments     = "hms_appointments_v1"
	KeyBills            = "hms_bills_v1"
	KeyBillingRecords   = "hms_billing_records_v1"
	KeyWardRooms        = "hms_ward_rooms_v1"
	KeyAdmissions       = "hms_admissions_v1"
	KeyDoctors          = "hms_doctors_v1"
	KeyStaff            = "hms_staff_v1"
	KeyStaffMembers     = "hms_staff_members_v1"
	KeyTPAsV1           = "hms_tpa_v1"
	KeyTPAs             = "hms_tpa_v2"
	KeyClaimsV1         = "hms_tpa_claims_v1"
	KeyClaims           = "hms_tpa_claims_v2"
	KeyPolicies         = "hms_insurance_policies_v1"
	KeyTPABills         = "hms_tpa_bills_v1"
	KeyAuthUser         = "hms_auth_user_v1"
	KeyUsers            = "hms_users_v1"
	KeyLabAssignments   = "hms_lab_assignments_v1"
	KeyRazorpayOrders   = "razorpay_orders"
	KeyRazorpayPayments = "razorpay_payments"
)

// legacyKeys maps superseded keys to the key that now holds their records.
var legacyKeys = map[string]string{
	KeyTPAsV1:         KeyTPAs,
	KeyClaimsV1:       KeyClaims,
	KeyStaffMembers:   KeyStaff,
	KeyBillingRecords: KeyBills,
}

// unmanagedKeys belong to the browser session and payment-gateway mock and
// are never imported.
var unmanagedKeys = map[string]bool{
	KeyAuthUser:         true,
	KeyRazorpayOrders:   true,
	KeyRazorpayPayments: true,
}

// ManagedKeys lists the keys the server reads and writes.
func ManagedKeys() []string {
	return []string{
		KeyPatients, KeyAppointments, KeyBills, KeyWardRooms, KeyAdmissions,
		KeyDoctors, KeyStaff, KeyTPAs, KeyClaims, KeyPolicies, KeyTPABills,
		KeyUsers, KeyLabAssignments,
	}
}

// Canonical resolves a legacy key to its current key.
func Canonical(key string) string {
	if target, ok := legacyKeys[key]; ok {
		return target
	}
	return key
}
