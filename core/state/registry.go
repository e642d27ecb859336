package state

import (
	"fmt"
	"strings"

	"yieldnet/native/registry"
)

type storedAsset struct {
	ID          uint64
	Owner       [20]byte
	Metadata    string
	Verified    bool
	AgreementID uint64
	CreatedAt   uint64
}

// RegistryNextAssetID allocates the next asset identifier.
func (m *Manager) RegistryNextAssetID() (uint64, error) {
	return m.nextSequence(assetSeqKey)
}

// AssetPut stores the asset record keyed by its identifier.
func (m *Manager) AssetPut(asset *registry.Asset) error {
	if asset == nil {
		return fmt.Errorf("state: asset must not be nil")
	}
	if asset.ID == 0 {
		return fmt.Errorf("state: asset id must be allocated before storing")
	}
	if strings.TrimSpace(asset.Metadata) == "" {
		return fmt.Errorf("state: asset metadata must not be empty")
	}
	stored := storedAsset{
		ID:          asset.ID,
		Owner:       asset.Owner,
		Metadata:    asset.Metadata,
		Verified:    asset.Verified,
		AgreementID: asset.AgreementID,
		CreatedAt:   asset.CreatedAt,
	}
	return m.putRLP(assetKey(stored.ID), stored)
}

// AssetGet loads the asset record, reporting whether it exists.
func (m *Manager) AssetGet(id uint64) (*registry.Asset, bool, error) {
	var stored storedAsset
	ok, err := m.getRLP(assetKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &registry.Asset{
		ID:          stored.ID,
		Owner:       stored.Owner,
		Metadata:    stored.Metadata,
		Verified:    stored.Verified,
		AgreementID: stored.AgreementID,
		CreatedAt:   stored.CreatedAt,
	}, true, nil
}
