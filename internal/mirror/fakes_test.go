package mirror

import (
	"context"
	"fmt"
	"sync"

	"github.com/lalith-99/guildmirror/internal/models"
	"github.com/lalith-99/guildmirror/internal/repository"
)

// callLog records store operations across fakes so tests can assert ordering
// (categories before channels) and write counts (idempotence).
type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

type fakeCategoryRepo struct {
	mu   sync.Mutex
	rows map[int64]models.Category
	log  *callLog
	err  error
}

func newFakeCategoryRepo(log *callLog) *fakeCategoryRepo {
	return &fakeCategoryRepo{rows: make(map[int64]models.Category), log: log}
}

func (f *fakeCategoryRepo) GetByID(_ context.Context, id int64) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cat, ok := f.rows[id]; ok {
		return &cat, nil
	}
	return nil, nil
}

func (f *fakeCategoryRepo) Create(_ context.Context, cat models.Category) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[cat.ID] = cat
	f.log.add("category-create:%d", cat.ID)
	return nil
}

func (f *fakeCategoryRepo) Update(_ context.Context, cat models.Category) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[cat.ID] = cat
	f.log.add("category-update:%d", cat.ID)
	return nil
}

type fakeChannelRepo struct {
	mu   sync.Mutex
	rows map[int64]models.Channel
	log  *callLog
	err  error
}

func newFakeChannelRepo(log *callLog) *fakeChannelRepo {
	return &fakeChannelRepo{rows: make(map[int64]models.Channel), log: log}
}

func (f *fakeChannelRepo) GetByID(_ context.Context, id int64) (*models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.rows[id]; ok {
		return &ch, nil
	}
	return nil, nil
}

func (f *fakeChannelRepo) Create(_ context.Context, ch models.Channel) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[ch.ID] = ch
	f.log.add("channel-create:%d", ch.ID)
	return nil
}

func (f *fakeChannelRepo) Update(_ context.Context, ch models.Channel) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[ch.ID] = ch
	f.log.add("channel-update:%d", ch.ID)
	return nil
}

type fakeUserRepo struct {
	mu          sync.Mutex
	rows        map[int64]models.User
	chunkSizes  []int
	updateCalls int
	createCalls int

	// failChunk aborts BulkUpsert at the given chunk index; -1 disables.
	failChunk int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{rows: make(map[int64]models.User), failChunk: -1}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.rows[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) Create(_ context.Context, u models.User) (repository.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if _, ok := f.rows[u.ID]; ok {
		return repository.AlreadyExists, nil
	}
	// bot and opt_out keep their defaults on incremental creation.
	u.Bot = false
	u.OptOut = false
	f.rows[u.ID] = u
	return repository.Created, nil
}

func (f *fakeUserRepo) Update(_ context.Context, u models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	existing, ok := f.rows[u.ID]
	if !ok {
		return nil
	}
	// Mirror the SQL update: bot and opt_out are untouched.
	u.Bot = existing.Bot
	u.OptOut = existing.OptOut
	f.rows[u.ID] = u
	return nil
}

func (f *fakeUserRepo) BulkUpsert(_ context.Context, users []models.User, chunkSize int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	chunkIndex := 0
	for start := 0; start < len(users); start += chunkSize {
		end := start + chunkSize
		if end > len(users) {
			end = len(users)
		}
		chunk := users[start:end]
		f.chunkSizes = append(f.chunkSizes, len(chunk))

		if f.failChunk == chunkIndex {
			return count, fmt.Errorf("upsert chunk %d: boom", chunkIndex)
		}
		for _, u := range chunk {
			if existing, ok := f.rows[u.ID]; ok {
				u.OptOut = existing.OptOut
			}
			f.rows[u.ID] = u
		}
		count += len(chunk)
		chunkIndex++
	}
	return count, nil
}

type fakeMessageRepo struct {
	mu   sync.Mutex
	rows map[int64]models.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{rows: make(map[int64]models.Message)}
}

func (f *fakeMessageRepo) Create(_ context.Context, m models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[m.ID]; ok {
		return fmt.Errorf("duplicate message id %d", m.ID)
	}
	f.rows[m.ID] = m
	return nil
}

func (f *fakeMessageRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}
