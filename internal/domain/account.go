package domain

import "time"

type AccountType string

const (
	AccountTypeAsset     AccountType = "Asset"
	AccountTypeLiability AccountType = "Liability"
	AccountTypeEquity    AccountType = "Equity"
	AccountTypeRevenue   AccountType = "Revenue"
	AccountTypeExpense   AccountType = "Expense"
)

// Fixed ledger account names.
const (
	AccountRevenue         = "Revenue"
	AccountTaxPayable      = "Tax Payable"
	AccountMerchantPayable = "Merchant Payable"
	AccountProcessorFees   = "Processor Fees"
	AccountPlatformFees    = "Platform Fees"
	AccountCashBank        = "Cash/Bank"
)

// Account is a fixed ledger account. Seeded once, never mutated.
type Account struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Type        AccountType `json:"type"`
	Description string      `json:"description"`
	CreatedAt   time.Time   `json:"created_at"`
}

// DefaultAccounts is the seed set, in posting-line order.
var DefaultAccounts = []Account{
	{Name: AccountRevenue, Type: AccountTypeRevenue, Description: "Gross amount collected from customers"},
	{Name: AccountTaxPayable, Type: AccountTypeLiability, Description: "Sales tax collected and owed"},
	{Name: AccountMerchantPayable, Type: AccountTypeLiability, Description: "Net amount owed to merchants"},
	{Name: AccountProcessorFees, Type: AccountTypeExpense, Description: "Fees charged by the payment processor"},
	{Name: AccountPlatformFees, Type: AccountTypeExpense, Description: "Fees retained by the platform"},
	{Name: AccountCashBank, Type: AccountTypeAsset, Description: "Cash and bank settlement"},
}

// RequiredAccountNames lists every name the posting engine needs.
func RequiredAccountNames() []string {
	names := make([]string, 0, len(DefaultAccounts))
	for _, a := range DefaultAccounts {
		names = append(names, a.Name)
	}
	return names
}

// AccountSet maps account name to id.
type AccountSet map[string]string

// Missing returns the required names not present in the set.
func (s AccountSet) Missing() []string {
	var missing []string
	for _, name := range RequiredAccountNames() {
		if s[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
