package conversation

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/llm"
	"reverie/internal/service/settings"
	"reverie/internal/vector"
)

// Hand-rolled fakes shared by the tests in this package. Each implements just
// enough of its repository contract; unused methods return zero values.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeSettingRepo backs a settings.Service with an in-memory map.
type fakeSettingRepo struct {
	values map[string]string
}

func (f *fakeSettingRepo) Get(ctx context.Context, name string) (*models.Setting, error) {
	if v, ok := f.values[name]; ok {
		return &models.Setting{Name: name, Value: v}, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSettingRepo) GetAll(ctx context.Context) ([]models.Setting, error) {
	out := make([]models.Setting, 0, len(f.values))
	for name, value := range f.values {
		out = append(out, models.Setting{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeSettingRepo) Set(ctx context.Context, name, value string) error {
	f.values[name] = value
	return nil
}

func (f *fakeSettingRepo) Delete(ctx context.Context, name string) error {
	delete(f.values, name)
	return nil
}

func newTestSettings(values map[string]string) *settings.Service {
	if values == nil {
		values = map[string]string{}
	}
	return settings.NewService(&fakeSettingRepo{values: values}, testLogger())
}

// fakeTurnRepo stores turns in memory and records mutations.
type fakeTurnRepo struct {
	mu     sync.Mutex
	nextID int64
	turns  map[int64]*models.Turn

	err             error
	strippedWrites  map[int64]string
	deleted         []int64
	clearedSessions []int64
}

func newFakeTurnRepo() *fakeTurnRepo {
	return &fakeTurnRepo{
		turns:          make(map[int64]*models.Turn),
		strippedWrites: make(map[int64]string),
	}
}

// seed inserts a finished turn directly.
func (f *fakeTurnRepo) seed(turn models.Turn) *models.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if turn.ID == 0 {
		f.nextID++
		turn.ID = f.nextID
	} else if turn.ID > f.nextID {
		f.nextID = turn.ID
	}
	stored := turn
	f.turns[stored.ID] = &stored
	return &stored
}

func (f *fakeTurnRepo) Create(ctx context.Context, turn *models.Turn) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	turn.ID = f.nextID
	turn.CreatedAt = time.Now().UTC()
	stored := *turn
	f.turns[turn.ID] = &stored
	return nil
}

func (f *fakeTurnRepo) GetByID(ctx context.Context, id int64) (*models.Turn, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	turn, ok := f.turns[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: "turn not found"}
	}
	copied := *turn
	return &copied, nil
}

func (f *fakeTurnRepo) ListBySession(ctx context.Context, sessionID int64) ([]models.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Turn
	for _, turn := range f.turns {
		if turn.SessionID == sessionID {
			out = append(out, *turn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTurnRepo) GetRecentAccepted(ctx context.Context, sessionID int64, limit int, beforeTurnID int64) ([]models.Turn, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit <= 0 {
		return []models.Turn{}, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Turn
	for _, turn := range f.turns {
		if turn.SessionID == sessionID && turn.Accepted && turn.ID < beforeTurnID {
			out = append(out, *turn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeTurnRepo) UpdateResponse(ctx context.Context, id int64, response, displayResponse string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	turn, ok := f.turns[id]
	if !ok {
		return &domain.NotFoundError{Message: "turn not found"}
	}
	turn.Response = response
	turn.DisplayResponse = displayResponse
	return nil
}

func (f *fakeTurnRepo) UpdateInput(ctx context.Context, id int64, input, jsonInput string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	turn, ok := f.turns[id]
	if !ok {
		return &domain.NotFoundError{Message: "turn not found"}
	}
	turn.Input = input
	turn.JSONInput = jsonInput
	return nil
}

func (f *fakeTurnRepo) UpdateAccepted(ctx context.Context, id int64, accepted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	turn, ok := f.turns[id]
	if !ok {
		return &domain.NotFoundError{Message: "turn not found"}
	}
	turn.Accepted = accepted
	return nil
}

func (f *fakeTurnRepo) UpdateStripped(ctx context.Context, id int64, stripped string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	turn, ok := f.turns[id]
	if !ok {
		return &domain.NotFoundError{Message: "turn not found"}
	}
	turn.StrippedTurn = stripped
	f.strippedWrites[id] = stripped
	return nil
}

func (f *fakeTurnRepo) ClearStrippedBySession(ctx context.Context, sessionID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearedSessions = append(f.clearedSessions, sessionID)
	var n int64
	for _, turn := range f.turns {
		if turn.SessionID == sessionID && turn.StrippedTurn != "" {
			turn.StrippedTurn = ""
			n++
		}
	}
	return n, nil
}

func (f *fakeTurnRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.turns, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeTurnRepo) get(id int64) models.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.turns[id]
}

// fakeContextDataRepo holds records in memory and records trigger and
// post-turn calls.
type fakeContextDataRepo struct {
	mu      sync.Mutex
	records map[int64]*models.ContextData

	err              error
	incremented      []int64
	postTurnProfiles []int64
	postTurnCleared  int64
}

func newFakeContextDataRepo(records ...models.ContextData) *fakeContextDataRepo {
	f := &fakeContextDataRepo{records: make(map[int64]*models.ContextData)}
	for _, record := range records {
		stored := record
		f.records[stored.ID] = &stored
	}
	return f
}

func (f *fakeContextDataRepo) Create(ctx context.Context, data *models.ContextData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *data
	f.records[stored.ID] = &stored
	return nil
}

func (f *fakeContextDataRepo) GetByID(ctx context.Context, id int64) (*models.ContextData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: "context data not found"}
	}
	copied := *record
	return &copied, nil
}

func (f *fakeContextDataRepo) GetByIDs(ctx context.Context, ids []int64) ([]models.ContextData, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ContextData
	for _, id := range ids {
		if record, ok := f.records[id]; ok {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (f *fakeContextDataRepo) List(ctx context.Context, profileID int64, t *models.ContextType, a *models.Availability, includeArchived bool) ([]models.ContextData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ContextData
	for _, record := range f.records {
		if record.ProfileID != profileID {
			continue
		}
		if t != nil && record.Type != *t {
			continue
		}
		if a != nil && record.Availability != *a {
			continue
		}
		if record.IsArchived && !includeArchived {
			continue
		}
		out = append(out, *record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeContextDataRepo) GetAlwaysOn(ctx context.Context, profileID int64, t *models.ContextType) ([]models.ContextData, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ContextData
	for _, record := range f.records {
		if record.ProfileID != profileID || record.Availability != models.AvailabilityAlwaysOn {
			continue
		}
		if !record.IsEnabled || record.IsArchived {
			continue
		}
		if t != nil && record.Type != *t {
			continue
		}
		out = append(out, *record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeContextDataRepo) GetActiveManual(ctx context.Context, profileID int64) ([]models.ContextData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ContextData
	for _, record := range f.records {
		if record.ProfileID != profileID || record.Availability != models.AvailabilityManual {
			continue
		}
		if !record.IsEnabled || (!record.UseNextTurnOnly && !record.UseEveryTurn) {
			continue
		}
		out = append(out, *record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeContextDataRepo) GetTriggers(ctx context.Context, profileID int64) ([]models.ContextData, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ContextData
	for _, record := range f.records {
		if record.ProfileID != profileID || record.Availability != models.AvailabilityTrigger {
			continue
		}
		if !record.IsEnabled || record.IsArchived {
			continue
		}
		out = append(out, *record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeContextDataRepo) GetUserProfile(ctx context.Context, profileID int64) (*models.ContextData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.ContextData
	for _, record := range f.records {
		if record.ProfileID != profileID || record.Type != models.ContextTypeCharacterProfile {
			continue
		}
		if !record.IsUser || !record.IsEnabled {
			continue
		}
		if best == nil || record.ID < best.ID {
			best = record
		}
	}
	if best == nil {
		return nil, &domain.NotFoundError{Message: "no user profile"}
	}
	copied := *best
	return &copied, nil
}

func (f *fakeContextDataRepo) GetSemanticCandidates(ctx context.Context, profileID int64, t models.ContextType) ([]models.ContextData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ContextData
	for _, record := range f.records {
		if record.ProfileID == profileID && record.Type == t && record.InVectorDB && record.IsEnabled {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (f *fakeContextDataRepo) Update(ctx context.Context, data *models.ContextData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *data
	f.records[stored.ID] = &stored
	return nil
}

func (f *fakeContextDataRepo) UpdateOverrideState(ctx context.Context, id int64, availability models.Availability, previous *models.Availability, useNextTurnOnly, useEveryTurn bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return &domain.NotFoundError{Message: "context data not found"}
	}
	record.Availability = availability
	record.PreviousAvailability = previous
	record.UseNextTurnOnly = useNextTurnOnly
	record.UseEveryTurn = useEveryTurn
	return nil
}

func (f *fakeContextDataRepo) SetEmbedded(ctx context.Context, id int64, embedded bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[id]; ok {
		record.InVectorDB = embedded
	}
	return nil
}

func (f *fakeContextDataRepo) SetArchived(ctx context.Context, id int64, archived bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[id]; ok {
		record.IsArchived = archived
	}
	return nil
}

func (f *fakeContextDataRepo) IncrementTrigger(ctx context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incremented = append(f.incremented, id)
	if record, ok := f.records[id]; ok {
		record.TriggerCount++
		record.LastTriggeredAt = &at
	}
	return nil
}

func (f *fakeContextDataRepo) ProcessPostTurn(ctx context.Context, profileID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postTurnProfiles = append(f.postTurnProfiles, profileID)
	return f.postTurnCleared, nil
}

func (f *fakeContextDataRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

func (f *fakeContextDataRepo) CopyProfile(ctx context.Context, fromProfileID, toProfileID int64) (int64, error) {
	return 0, nil
}

// fakeSystemMessageRepo serves active messages from a fixed slice.
type fakeSystemMessageRepo struct {
	messages []models.SystemMessage
	err      error
}

func (f *fakeSystemMessageRepo) Create(ctx context.Context, msg *models.SystemMessage) error {
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeSystemMessageRepo) GetByID(ctx context.Context, id int64) (*models.SystemMessage, error) {
	for i := range f.messages {
		if f.messages[i].ID == id {
			copied := f.messages[i]
			return &copied, nil
		}
	}
	return nil, &domain.NotFoundError{Message: "system message not found"}
}

func (f *fakeSystemMessageRepo) GetByIDs(ctx context.Context, ids []int64) ([]models.SystemMessage, error) {
	var out []models.SystemMessage
	for _, id := range ids {
		for i := range f.messages {
			if f.messages[i].ID == id {
				out = append(out, f.messages[i])
			}
		}
	}
	return out, nil
}

func (f *fakeSystemMessageRepo) List(ctx context.Context, profileID int64, includeArchived bool) ([]models.SystemMessage, error) {
	var out []models.SystemMessage
	for _, msg := range f.messages {
		if msg.ProfileID == profileID && (includeArchived || !msg.IsArchived) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *fakeSystemMessageRepo) GetActiveByType(ctx context.Context, profileID int64, t models.SystemMessageType) ([]models.SystemMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.SystemMessage
	for _, msg := range f.messages {
		if msg.ProfileID == profileID && msg.Type == t && msg.IsActive && !msg.IsArchived {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *fakeSystemMessageRepo) GetAttachedContextFiles(ctx context.Context, profileID, personaID int64) ([]models.SystemMessage, error) {
	var out []models.SystemMessage
	for _, msg := range f.messages {
		if msg.ProfileID != profileID || msg.Type != models.SystemMessageContextFile || !msg.IsActive {
			continue
		}
		for _, attached := range msg.AttachedToPersonas {
			if attached == personaID {
				out = append(out, msg)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeSystemMessageRepo) GetPerceptionContextFiles(ctx context.Context, profileID, perceptionID int64) ([]models.SystemMessage, error) {
	var out []models.SystemMessage
	for _, msg := range f.messages {
		if msg.ProfileID != profileID || msg.Type != models.SystemMessageContextFile || !msg.IsActive || msg.IsArchived {
			continue
		}
		for _, attached := range msg.AttachedToPerceptions {
			if attached == perceptionID {
				out = append(out, msg)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeSystemMessageRepo) GetUserProfileMessage(ctx context.Context, profileID int64) (*models.SystemMessage, error) {
	for i := range f.messages {
		msg := f.messages[i]
		if msg.ProfileID == profileID && msg.IsUserProfile && msg.IsActive {
			return &msg, nil
		}
	}
	return nil, &domain.NotFoundError{Message: "no user profile message"}
}

func (f *fakeSystemMessageRepo) GetVersions(ctx context.Context, rootID int64) ([]models.SystemMessage, error) {
	return nil, nil
}

func (f *fakeSystemMessageRepo) MaxVersion(ctx context.Context, rootID int64) (int, error) {
	return 1, nil
}

func (f *fakeSystemMessageRepo) DeactivateFamily(ctx context.Context, rootID int64) error { return nil }

func (f *fakeSystemMessageRepo) SetActive(ctx context.Context, id int64) error { return nil }

func (f *fakeSystemMessageRepo) SetArchived(ctx context.Context, id int64, archived bool) error {
	return nil
}

func (f *fakeSystemMessageRepo) DeleteFamily(ctx context.Context, rootID int64) error { return nil }

func (f *fakeSystemMessageRepo) CopyProfile(ctx context.Context, fromProfileID, toProfileID int64) (int64, error) {
	return 0, nil
}

// fakeFlagRepo serves active flags and records consumption.
type fakeFlagRepo struct {
	mu       sync.Mutex
	flags    []models.Flag
	consumed []int64
}

func (f *fakeFlagRepo) Create(ctx context.Context, flag *models.Flag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags = append(f.flags, *flag)
	return nil
}

func (f *fakeFlagRepo) GetByID(ctx context.Context, id int64) (*models.Flag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.flags {
		if f.flags[i].ID == id {
			copied := f.flags[i]
			return &copied, nil
		}
	}
	return nil, &domain.NotFoundError{Message: "flag not found"}
}

func (f *fakeFlagRepo) List(ctx context.Context, profileID int64) ([]models.Flag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Flag
	for _, flag := range f.flags {
		if flag.ProfileID == profileID {
			out = append(out, flag)
		}
	}
	return out, nil
}

func (f *fakeFlagRepo) ListActive(ctx context.Context, profileID int64) ([]models.Flag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Flag
	for _, flag := range f.flags {
		if flag.ProfileID == profileID && flag.Active {
			out = append(out, flag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeFlagRepo) Update(ctx context.Context, flag *models.Flag) error { return nil }

func (f *fakeFlagRepo) Consume(ctx context.Context, profileID int64, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumed = append(f.consumed, profileID)
	var n int64
	for i := range f.flags {
		flag := &f.flags[i]
		if flag.ProfileID != profileID || !flag.Active {
			continue
		}
		flag.LastUsedAt = &at
		if !flag.Constant {
			flag.Active = false
		}
		n++
	}
	return n, nil
}

func (f *fakeFlagRepo) Delete(ctx context.Context, id int64) error { return nil }

func (f *fakeFlagRepo) CopyProfile(ctx context.Context, fromProfileID, toProfileID int64) (int64, error) {
	return 0, nil
}

// fakeSessionRepo serves one active session per profile.
type fakeSessionRepo struct {
	active map[int64]*models.Session
}

func (f *fakeSessionRepo) Create(ctx context.Context, session *models.Session) error { return nil }

func (f *fakeSessionRepo) GetByID(ctx context.Context, id int64) (*models.Session, error) {
	for _, session := range f.active {
		if session.ID == id {
			copied := *session
			return &copied, nil
		}
	}
	return nil, &domain.NotFoundError{Message: "session not found"}
}

func (f *fakeSessionRepo) GetActive(ctx context.Context, profileID int64) (*models.Session, error) {
	session, ok := f.active[profileID]
	if !ok {
		return nil, &domain.NoActiveSessionError{ProfileID: profileID}
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionRepo) List(ctx context.Context, profileID int64) ([]models.Session, error) {
	return nil, nil
}

func (f *fakeSessionRepo) Activate(ctx context.Context, id int64) error { return nil }

func (f *fakeSessionRepo) Update(ctx context.Context, session *models.Session) error { return nil }

func (f *fakeSessionRepo) Delete(ctx context.Context, id int64) error { return nil }

// fakeProfileRepo serves a single active profile.
type fakeProfileRepo struct {
	activeID int64
}

func (f *fakeProfileRepo) Create(ctx context.Context, profile *models.Profile) error { return nil }

func (f *fakeProfileRepo) GetByID(ctx context.Context, id int64) (*models.Profile, error) {
	return &models.Profile{ID: id, Name: "Test"}, nil
}

func (f *fakeProfileRepo) GetActive(ctx context.Context) (*models.Profile, error) {
	if f.activeID == 0 {
		return nil, domain.ErrNoActiveProfile
	}
	return &models.Profile{ID: f.activeID, Name: "Test", IsActive: true}, nil
}

func (f *fakeProfileRepo) List(ctx context.Context) ([]models.Profile, error) { return nil, nil }

func (f *fakeProfileRepo) Activate(ctx context.Context, id int64) error { return nil }

func (f *fakeProfileRepo) Update(ctx context.Context, profile *models.Profile) error { return nil }

func (f *fakeProfileRepo) Delete(ctx context.Context, id int64) error { return nil }

// fakeVectorStore returns scripted hits per collection.
type fakeVectorStore struct {
	mu       sync.Mutex
	hits     map[string][]vector.Hit
	searches []string
	err      error
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, collection string, dim uint64) error {
	return nil
}

func (f *fakeVectorStore) Upsert(ctx context.Context, collection string, dbPK int64, vec []float32, payload vector.Payload) error {
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, collection string, vec []float32, k uint64, profileID int64) ([]vector.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.searches = append(f.searches, collection)
	return f.hits[collection], nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, collection string, dbPK int64) error {
	return nil
}

func (f *fakeVectorStore) Close() error { return nil }

// fakeEmbedder returns one fixed vector per input text.
type fakeEmbedder struct {
	err       error
	calls     int
	lastTexts []string
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.lastTexts = texts
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeProvider replays scripted outputs and records the inputs it saw.
type fakeProvider struct {
	mu     sync.Mutex
	name   string
	output string
	fail   bool
	err    error
	inputs []llm.GenerateInput
}

func (f *fakeProvider) Name() string {
	if f.name == "" {
		return llm.ProviderGemini
	}
	return f.name
}

func (f *fakeProvider) GenerateContent(ctx context.Context, in llm.GenerateInput) (llm.GenerateOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return llm.GenerateOutput{}, f.err
	}
	if f.fail {
		return llm.GenerateOutput{Success: false, Text: f.output}, nil
	}
	return llm.GenerateOutput{Success: true, Text: f.output}, nil
}

func (f *fakeProvider) lastInput() llm.GenerateInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[len(f.inputs)-1]
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}
