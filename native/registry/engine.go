package registry

import (
	"errors"
	"strings"
	"time"

	"yieldnet/core/events"
	"yieldnet/core/types"
	"yieldnet/native/compliance"
)

var (
	errNilState        = errors.New("asset registry: state not configured")
	errNotFound        = errors.New("asset registry: asset not found")
	errEmptyMetadata   = errors.New("asset registry: metadata must not be empty")
	errNotVerifier     = errors.New("asset registry: caller is not the verification authority")
	errAlreadyVerified = errors.New("asset registry: asset already verified")
	errAlreadyLinked   = errors.New("asset registry: asset already linked to an agreement")
	errNotLinked       = errors.New("asset registry: asset not linked to an agreement")
)

const (
	// EventTypeRegistered is emitted when a new asset record is admitted.
	EventTypeRegistered = "registry.registered"
	// EventTypeVerified is emitted when the verification authority approves
	// an asset.
	EventTypeVerified = "registry.verified"
)

// Asset is the registered collateral record behind financing agreements. Each
// asset backs at most one active agreement at a time.
type Asset struct {
	ID       uint64
	Owner    [20]byte
	Metadata string
	Verified bool
	// AgreementID is the active agreement backed by this asset, zero when
	// unencumbered.
	AgreementID uint64
	CreatedAt   uint64
}

// Clone returns a copy of the asset record.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

type engineState interface {
	RegistryNextAssetID() (uint64, error)
	AssetPut(*Asset) error
	AssetGet(id uint64) (*Asset, bool, error)
}

// Engine maintains asset registration, verification and the 1:1 link between
// an asset and its active agreement.
type Engine struct {
	state    engineState
	verifier [20]byte
	gate     compliance.Gate
	emitter  events.Emitter
	nowFn    func() int64
}

// NewEngine constructs a registry engine whose verification authority is the
// supplied address.
func NewEngine(verifier [20]byte) *Engine {
	return &Engine{
		verifier: verifier,
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetGate configures the compliance gate consulted at registration.
func (e *Engine) SetGate(gate compliance.Gate) {
	if e == nil {
		return
	}
	e.gate = gate
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Register admits a new asset owned by the caller.
func (e *Engine) Register(caller [20]byte, metadata string) (*Asset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if strings.TrimSpace(metadata) == "" {
		return nil, errEmptyMetadata
	}
	if err := compliance.Check(e.gate, caller); err != nil {
		return nil, err
	}
	id, err := e.state.RegistryNextAssetID()
	if err != nil {
		return nil, err
	}
	ts := e.nowFn()
	if ts < 0 {
		ts = 0
	}
	asset := &Asset{
		ID:        id,
		Owner:     caller,
		Metadata:  strings.TrimSpace(metadata),
		CreatedAt: uint64(ts),
	}
	if err := e.state.AssetPut(asset); err != nil {
		return nil, err
	}
	e.emit(newRegisteredEvent(asset))
	return asset.Clone(), nil
}

// Verify marks the asset as verified. Verification authority only; verifying
// twice is a state error.
func (e *Engine) Verify(caller [20]byte, assetID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.verifier {
		return errNotVerifier
	}
	asset, err := e.Get(assetID)
	if err != nil {
		return err
	}
	if asset.Verified {
		return errAlreadyVerified
	}
	asset.Verified = true
	if err := e.state.AssetPut(asset); err != nil {
		return err
	}
	e.emit(newVerifiedEvent(asset))
	return nil
}

// Get loads the asset record.
func (e *Engine) Get(assetID uint64) (*Asset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	asset, ok, err := e.state.AssetGet(assetID)
	if err != nil {
		return nil, err
	}
	if !ok || asset == nil {
		return nil, errNotFound
	}
	return asset.Clone(), nil
}

// AssetVerified reports the verification flag and whether the asset exists.
func (e *Engine) AssetVerified(assetID uint64) (bool, bool, error) {
	if e == nil || e.state == nil {
		return false, false, errNilState
	}
	asset, ok, err := e.state.AssetGet(assetID)
	if err != nil || !ok || asset == nil {
		return false, false, err
	}
	return asset.Verified, true, nil
}

// AssetOwner reports the registered owner and whether the asset exists.
func (e *Engine) AssetOwner(assetID uint64) ([20]byte, bool, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, false, errNilState
	}
	asset, ok, err := e.state.AssetGet(assetID)
	if err != nil || !ok || asset == nil {
		return [20]byte{}, false, err
	}
	return asset.Owner, true, nil
}

// ActiveAgreement reports the agreement currently backed by the asset.
func (e *Engine) ActiveAgreement(assetID uint64) (uint64, bool, error) {
	if e == nil || e.state == nil {
		return 0, false, errNilState
	}
	asset, ok, err := e.state.AssetGet(assetID)
	if err != nil || !ok || asset == nil {
		return 0, false, err
	}
	return asset.AgreementID, asset.AgreementID != 0, nil
}

// LinkAgreement records the 1:1 asset-to-agreement binding.
func (e *Engine) LinkAgreement(assetID, agreementID uint64) error {
	asset, err := e.Get(assetID)
	if err != nil {
		return err
	}
	if asset.AgreementID != 0 {
		return errAlreadyLinked
	}
	asset.AgreementID = agreementID
	return e.state.AssetPut(asset)
}

// UnlinkAgreement clears the binding once the agreement reaches a terminal
// state.
func (e *Engine) UnlinkAgreement(assetID uint64) error {
	asset, err := e.Get(assetID)
	if err != nil {
		return err
	}
	if asset.AgreementID == 0 {
		return errNotLinked
	}
	asset.AgreementID = 0
	return e.state.AssetPut(asset)
}

type registryEvent struct {
	evt *types.Event
}

func (r registryEvent) EventType() string {
	if r.evt == nil {
		return ""
	}
	return r.evt.Type
}

func (r registryEvent) Event() *types.Event { return r.evt }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(registryEvent{evt: evt})
}

func newRegisteredEvent(a *Asset) *types.Event {
	attrs := make(map[string]string)
	if a != nil {
		attrs["id"] = formatID(a.ID)
		attrs["owner"] = formatAddr(a.Owner)
	}
	return &types.Event{Type: EventTypeRegistered, Attributes: attrs}
}

func newVerifiedEvent(a *Asset) *types.Event {
	attrs := make(map[string]string)
	if a != nil {
		attrs["id"] = formatID(a.ID)
	}
	return &types.Event{Type: EventTypeVerified, Attributes: attrs}
}
