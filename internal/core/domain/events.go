package domain

// EventName ...
type EventName string

const (
	EventWalletUpdate             EventName = "WalletUpdate"
	EventWalletRemove             EventName = "WalletRemove"
	EventWalletRename             EventName = "WalletRename"
	EventAccountUpdate            EventName = "AccountUpdate"
	EventAccountRemove            EventName = "AccountRemove"
	EventRenameAccounts           EventName = "RenameAccounts"
	EventAddAccountsToWallet      EventName = "AddDBAccountsToWallet"
	EventCloudSyncPasswordChanged EventName = "CloudSyncPasswordChanged"
)

// Event is a fire-and-forget notification raised after a committed mutation.
type Event struct {
	Name     EventName `json:"name"`
	WalletID string    `json:"walletId,omitempty"`
	// AccountIDs lists the accounts or indexed accounts involved.
	AccountIDs []string `json:"accountIds,omitempty"`
	Payload    string   `json:"payload,omitempty"`
}

// IsStructural returns whether the event invalidates cached listings.
func (e Event) IsStructural() bool {
	return e.Name != EventCloudSyncPasswordChanged
}
