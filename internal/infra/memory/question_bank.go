package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quiz-duel-service/internal/domain"
)

// TopicLoader fetches the question pool for a topic from a backing store.
type TopicLoader interface {
	LoadTopic(ctx context.Context, topic string) ([]domain.Question, error)
}

// QuestionBank caches per-topic question pools with TTL to avoid repeated DB
// hits, and samples a fresh set for every draw.
type QuestionBank struct {
	loader TopicLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader TopicLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
	}
}

// Draw samples count distinct questions for the topic.
func (b *QuestionBank) Draw(ctx context.Context, topic string, count int) ([]domain.Question, error) {
	pool, err := b.pool(ctx, topic)
	if err != nil {
		return nil, err
	}
	if len(pool) < count {
		return nil, fmt.Errorf("topic %q has %d questions, need %d: %w", topic, len(pool), count, domain.ErrNoQuestions)
	}

	picked := make([]domain.Question, len(pool))
	copy(picked, pool)
	b.rndMu.Lock()
	b.rnd.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	b.rndMu.Unlock()
	return picked[:count], nil
}

func (b *QuestionBank) pool(ctx context.Context, topic string) ([]domain.Question, error) {
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[topic]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.questions, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(topic, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[topic]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.questions, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadTopic(ctx, topic)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.cache[topic] = cachedPool{
			questions: questions,
			expiresAt: now.Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticTopicLoader is a simple loader backed by an in-memory map (useful for
// tests/demos).
type StaticTopicLoader struct {
	topics map[string][]domain.Question
}

func NewStaticTopicLoader(topics map[string][]domain.Question) *StaticTopicLoader {
	return &StaticTopicLoader{topics: topics}
}

func (l *StaticTopicLoader) LoadTopic(_ context.Context, topic string) ([]domain.Question, error) {
	if questions, ok := l.topics[topic]; ok {
		return questions, nil
	}
	return nil, fmt.Errorf("topic %q: %w", topic, domain.ErrNoQuestions)
}
