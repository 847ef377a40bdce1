package inverter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/invbridge/invbridge/pkg/common"
	"github.com/invbridge/invbridge/pkg/log"
	"github.com/invbridge/invbridge/pkg/types"
)

const (
	froniusLoginPath       = "/commands/Login"
	froniusBatteriesPath   = "/config/batteries"
	froniusTimeOfUsePath   = "/config/timeofuse"
	froniusBMSReadablePath = "/components/BatteryManagementSystem/readable"
	froniusInvReadablePath = "/components/inverter/readable"
)

// Fronius implements the Inverter contract for GEN24 devices over the local
// web API with digest challenge-response authentication. The legacy variant
// is pinned to MD5 response digests; the modern one negotiates the algorithm
// with the device and defaults to SHA256.
type Fronius struct {
	client  *http.Client
	baseURL string
	cfg     types.InverterConfig
	legacy  bool

	mu            sync.Mutex
	session       *digestSession
	authenticated bool
	battery       types.BatteryInfo
}

func newFroniusV2(cfg types.InverterConfig) (Inverter, error) {
	return newFronius(cfg, false)
}

func newFroniusLegacy(cfg types.InverterConfig) (Inverter, error) {
	return newFronius(cfg, true)
}

func newFronius(cfg types.InverterConfig, legacy bool) (*Fronius, error) {
	cfg = cfg.Normalized()
	if cfg.Address == "" {
		return nil, errors.New("fronius: missing address")
	}
	algorithm := algorithmSHA256
	if legacy {
		algorithm = algorithmMD5
	}
	return &Fronius{
		client:  common.HTTPClient(10 * time.Second),
		baseURL: "http://" + cfg.Address,
		cfg:     cfg,
		legacy:  legacy,
		session: newDigestSession(algorithm),
		battery: types.NewBatteryInfo(),
	}, nil
}

// Initialize performs the first handshake and primes the battery info cache
// so the capacity is known before the first control decision.
func (f *Fronius) Initialize(ctx context.Context) error {
	ctx = log.WithBackend(ctx, f.cfg.Type, f.cfg.Address)
	if err := f.Authenticate(ctx); err != nil {
		return err
	}
	if _, err := f.BatteryInfo(ctx); err != nil {
		return fmt.Errorf("initial battery info read failed: %w", err)
	}
	return nil
}

// Authenticate runs the digest handshake. A renewed login within an existing
// session skips the challenge round-trip and reuses the nonce with an
// incremented counter; the device re-challenges when it disagrees.
func (f *Fronius) Authenticate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.login(ctx)
}

// login must be called with f.mu held.
func (f *Fronius) login(ctx context.Context) error {
	d := f.session
	if d.loginAttempts >= maxLoginAttempts {
		return &AuthError{Reason: "login attempt cap reached", Attempts: d.loginAttempts}
	}

	loginURL := f.baseURL + froniusLoginPath + "?user=" + f.cfg.User
	for d.loginAttempts < maxLoginAttempts {
		if !d.subsequentLogin || d.nonce == "" {
			if err := f.fetchChallenge(ctx, loginURL); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", d.authorization(f.cfg.User, f.cfg.Password, http.MethodGet, froniusLoginPath))

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("login request failed: %w", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			f.authenticated = true
			d.subsequentLogin = true
			d.loginAttempts = 0
			log.Ctx(ctx).DebugContext(ctx, "fronius login success",
				slog.String("algorithm", d.algorithm),
				slog.Int("nc", d.nc),
			)
			return nil
		case http.StatusUnauthorized:
			d.loginAttempts++
			// Rejected response digest. Start over from a fresh challenge.
			d.reset()
			log.Ctx(ctx).WarnContext(ctx, "fronius login rejected",
				slog.Int("attempts", d.loginAttempts),
			)
		default:
			return fmt.Errorf("login failed: status %d", resp.StatusCode)
		}
	}
	return &AuthError{Reason: "login attempt cap reached", Attempts: d.loginAttempts}
}

// fetchChallenge asks the device for a fresh digest challenge. The device
// answers the bare login request with 401 and the challenge header.
func (f *Fronius) fetchChallenge(ctx context.Context, loginURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginURL, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("challenge request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("expected digest challenge, got status %d", resp.StatusCode)
	}
	header := resp.Header.Get("X-WWW-Authenticate")
	if header == "" {
		header = resp.Header.Get("WWW-Authenticate")
	}
	if header == "" {
		return errors.New("challenge response missing digest header")
	}
	return f.session.applyChallenge(header, !f.legacy)
}

// doRequest issues one authenticated request. On a 401 it restarts the
// handshake once and retries, so a stale nonce or expired session heals
// transparently. Must be called with f.mu held.
func (f *Fronius) doRequest(ctx context.Context, method, path string, body, dest any) error {
	if !f.authenticated {
		return ErrUnauthenticated
	}

	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	for i := 0; i < 2; i++ {
		var rdr io.Reader
		if raw != nil {
			rdr = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, rdr)
		if err != nil {
			return err
		}
		if raw != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", f.session.authorization(f.cfg.User, f.cfg.Password, method, path))

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("request %s failed: %w", path, err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			challenge := resp.Header.Get("X-WWW-Authenticate")
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if i > 0 {
				return &AuthError{Reason: "session rejected after re-login"}
			}
			if challengeIsStale(challenge) {
				log.Ctx(ctx).DebugContext(ctx, "fronius nonce stale, re-authenticating")
			} else {
				log.Ctx(ctx).DebugContext(ctx, "fronius session expired, re-authenticating")
			}
			f.authenticated = false
			f.session.reset()
			if err := f.login(ctx); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return fmt.Errorf("request %s failed: status %d", path, resp.StatusCode)
		}

		if dest != nil {
			err = json.NewDecoder(resp.Body).Decode(dest)
		} else {
			_, err = io.Copy(io.Discard, resp.Body)
		}
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
		return nil
	}
	return nil
}

// Connect opens the session. False means authentication failed.
func (f *Fronius) Connect(ctx context.Context) bool {
	if err := f.Authenticate(ctx); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "fronius connect failed", slog.Any("error", err))
		return false
	}
	return true
}

// Disconnect drops the session. Best-effort, always succeeds; the device
// expires the server side on its own.
func (f *Fronius) Disconnect(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authenticated = false
	f.session.reset()
	f.session.loginAttempts = 0
	log.Ctx(ctx).DebugContext(ctx, "fronius session closed")
	return true
}

func (f *Fronius) Shutdown(ctx context.Context) {
	f.Disconnect(ctx)
}

type froniusWriteResult struct {
	WriteSuccess []string `json:"writeSuccess"`
	WriteFailed  []string `json:"writeFailed"`
}

func (r froniusWriteResult) ok() bool { return len(r.WriteFailed) == 0 }

type froniusTimeTable struct {
	Start string `json:"Start"`
	End   string `json:"End"`
}

type froniusWeekdays struct {
	Mon bool `json:"Mon"`
	Tue bool `json:"Tue"`
	Wed bool `json:"Wed"`
	Thu bool `json:"Thu"`
	Fri bool `json:"Fri"`
	Sat bool `json:"Sat"`
	Sun bool `json:"Sun"`
}

func allWeek() froniusWeekdays {
	return froniusWeekdays{Mon: true, Tue: true, Wed: true, Thu: true, Fri: true, Sat: true, Sun: true}
}

type froniusTimeOfUseEntry struct {
	Active       bool             `json:"Active"`
	Power        int              `json:"Power"`
	ScheduleType string           `json:"ScheduleType"`
	TimeTable    froniusTimeTable `json:"TimeTable"`
	Weekdays     froniusWeekdays  `json:"Weekdays"`
}

func froniusAllDayEntry(scheduleType string, powerW int) froniusTimeOfUseEntry {
	return froniusTimeOfUseEntry{
		Active:       true,
		Power:        powerW,
		ScheduleType: scheduleType,
		TimeTable:    froniusTimeTable{Start: "00:00", End: "23:59"},
		Weekdays:     allWeek(),
	}
}

// setTimeOfUse replaces the device's time-of-use table. An empty table
// returns the battery to normal self-consumption behavior.
func (f *Fronius) setTimeOfUse(ctx context.Context, entries []froniusTimeOfUseEntry) (bool, error) {
	if entries == nil {
		entries = []froniusTimeOfUseEntry{}
	}
	var res froniusWriteResult
	err := f.doRequest(ctx, http.MethodPost, froniusTimeOfUsePath, map[string]any{"timeofuse": entries}, &res)
	if err != nil {
		return false, err
	}
	if !res.ok() {
		log.Ctx(ctx).WarnContext(ctx, "fronius rejected timeofuse update",
			slog.Any("failed", res.WriteFailed),
		)
		return false, nil
	}
	return true, nil
}

// SetBatteryMode sends the normal/hold command. Hold pins the discharge
// ceiling to zero for the whole week; normal clears the table.
func (f *Fronius) SetBatteryMode(ctx context.Context, mode types.BatteryMode) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch mode {
	case types.BatteryModeNormal:
		log.Ctx(ctx).DebugContext(ctx, "allowing battery discharge")
		return f.setTimeOfUse(ctx, nil)
	case types.BatteryModeHold:
		log.Ctx(ctx).DebugContext(ctx, "avoiding battery discharge")
		return f.setTimeOfUse(ctx, []froniusTimeOfUseEntry{
			froniusAllDayEntry("DISCHARGE_MAX", 0),
		})
	case types.BatteryModeForceCharge:
		return false, errors.New("force charge carries a power, use SetModeForceCharge")
	default:
		return false, fmt.Errorf("unknown battery mode: %v", mode)
	}
}

// SetModeForceCharge requests charging at powerW, capped at the configured
// grid and PV ceilings. An over-ceiling request is clamped, not rejected.
func (f *Fronius) SetModeForceCharge(ctx context.Context, powerW int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	clamped := ClampChargePower(powerW, f.cfg.MaxGridChargeRateW, f.cfg.MaxPVChargeRateW)
	if clamped != powerW {
		log.Ctx(ctx).DebugContext(ctx, "clamped force charge power",
			slog.Int("requestedW", powerW),
			slog.Int("clampedW", clamped),
		)
	}
	log.Ctx(ctx).InfoContext(ctx, "forcing battery charge", slog.Int("powerW", clamped))
	return f.setTimeOfUse(ctx, []froniusTimeOfUseEntry{
		froniusAllDayEntry("CHARGE_MIN", clamped),
	})
}

// SetAllowGridCharging toggles charging the battery from the grid.
func (f *Fronius) SetAllowGridCharging(ctx context.Context, allow bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	log.Ctx(ctx).InfoContext(ctx, "setting grid charging", slog.Bool("allow", allow))
	var res froniusWriteResult
	err := f.doRequest(ctx, http.MethodPost, froniusBatteriesPath, map[string]any{
		"HYB_EVU_CHARGEFROMGRID": allow,
	}, &res)
	if err != nil {
		return err
	}
	if !res.ok() {
		return fmt.Errorf("device rejected grid charging update: %v", res.WriteFailed)
	}
	return nil
}

// SetMaxPVChargeRate updates the dynamic PV charge ceiling on the device.
func (f *Fronius) SetMaxPVChargeRate(ctx context.Context, watts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	log.Ctx(ctx).DebugContext(ctx, "setting max pv charge rate", slog.Int("watts", watts))
	var res froniusWriteResult
	err := f.doRequest(ctx, http.MethodPost, froniusBatteriesPath, map[string]any{
		"HYB_EM_MODE":  1,
		"HYB_EM_POWER": watts,
	}, &res)
	if err != nil {
		return err
	}
	if !res.ok() {
		return fmt.Errorf("device rejected pv charge rate update: %v", res.WriteFailed)
	}
	return nil
}

func (f *Fronius) SupportsExtendedMonitoring() bool { return true }

type froniusBatteryConfig struct {
	MinSOC float64 `json:"BAT_M0_SOC_MIN"`
	MaxSOC float64 `json:"BAT_M0_SOC_MAX"`
}

// BatteryInfo reads SOC bounds from the battery config and capacity/SOC from
// the battery management component. The capacity stays at the unknown
// sentinel until the first successful read.
func (f *Fronius) BatteryInfo(ctx context.Context) (types.BatteryInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var bc froniusBatteryConfig
	if err := f.doRequest(ctx, http.MethodGet, froniusBatteriesPath, nil, &bc); err != nil {
		return types.BatteryInfo{}, err
	}
	if bc.MinSOC > 0 {
		f.battery.MinSOC = bc.MinSOC
	}
	if bc.MaxSOC > 0 {
		f.battery.MaxSOC = bc.MaxSOC
	}

	channels, err := f.readComponentChannels(ctx, froniusBMSReadablePath)
	if err != nil {
		return types.BatteryInfo{}, err
	}
	if v, ok := channels["DesignedCapacity"]; ok {
		f.battery.CapacityWh = v
	}
	if v, ok := channels["StateOfCharge_Relative"]; ok {
		f.battery.SOC = v
	}

	log.Ctx(ctx).DebugContext(ctx, "fronius battery info",
		slog.Float64("soc", f.battery.SOC),
		slog.Float64("capacityWh", f.battery.CapacityWh),
		slog.Float64("minSOC", f.battery.MinSOC),
		slog.Float64("maxSOC", f.battery.MaxSOC),
	)
	return f.battery, nil
}

// FetchData returns a fresh snapshot of the inverter component channels.
// The canonical channels are always present, vendor-internal fields never.
func (f *Fronius) FetchData(ctx context.Context) (types.TelemetrySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	channels, err := f.readComponentChannels(ctx, froniusInvReadablePath)
	if err != nil {
		return nil, err
	}

	snap := types.TelemetrySnapshot{
		types.ChannelAmbientTemperatureMean: 0,
		types.ChannelModuleTemperatureMean:  0,
		types.ChannelFanControlPercent:      0,
	}
	for name, value := range channels {
		snap[name] = value
	}
	return snap, nil
}

type froniusComponentsResult struct {
	Body struct {
		Data map[string]struct {
			Channels map[string]any `json:"channels"`
		} `json:"Data"`
	} `json:"Body"`
}

// readComponentChannels flattens a components/readable response into one
// channel map, dropping internal fields and non-numeric values. Must be
// called with f.mu held.
func (f *Fronius) readComponentChannels(ctx context.Context, path string) (map[string]float64, error) {
	var res froniusComponentsResult
	if err := f.doRequest(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}

	merged := make(map[string]any)
	for _, component := range res.Body.Data {
		for name, value := range component.Channels {
			merged[name] = value
		}
	}
	public, _ := StripInternal(merged).(map[string]any)

	out := make(map[string]float64, len(public))
	for name, value := range public {
		if n, ok := value.(float64); ok {
			out[name] = n
		}
	}
	return out, nil
}
