package hierarchy

import "sync"

// tempWallets is the session scoped set of temp wallets still shown to the
// user.
type tempWallets struct {
	lock  sync.RWMutex
	shown map[string]struct{}
}

func newTempWallets() *tempWallets {
	return &tempWallets{shown: make(map[string]struct{})}
}

func (t *tempWallets) show(walletID string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.shown[walletID] = struct{}{}
}

func (t *tempWallets) hide(walletID string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	delete(t.shown, walletID)
}

func (t *tempWallets) isShown(walletID string) bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	_, ok := t.shown[walletID]
	return ok
}

func (t *tempWallets) reset() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.shown = make(map[string]struct{})
}
