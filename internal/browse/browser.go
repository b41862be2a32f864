// Package browse реализует клиентский движок выборки уязвимостей:
// каталог кварталов, фильтры, пагинацию и подавление устаревших ответов.
package browse

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/vulntracker/server/internal/api"
	"github.com/vulntracker/server/internal/models"
	"github.com/vulntracker/server/internal/session"
)

// Вкладки просмотра.
const (
	TabQuarter      = "quarter"      // выборка по кварталу
	TabCarryForward = "carryForward" // переходящие (carry-forward) уязвимости
)

// Кастомные ошибки пакета.
var (
	// ErrUnauthorized: нет валидных claims сессии (токен отсутствует,
	// поврежден или истек). Вызывающий обязан разобрать сессию.
	ErrUnauthorized = errors.New("требуется аутентификация")
	// ErrCompanyMissing: в claims нет компании - выборка невозможна.
	ErrCompanyMissing = errors.New("в сессии не указана компания")
	// ErrStaleQuery: ответ пришел после того, как состояние фильтров
	// изменилось; результат отброшен и не закоммичен.
	ErrStaleQuery = errors.New("результат запроса устарел")
)

// Retriever — коллаборатор выборки (подмножество api.Client).
type Retriever interface {
	ListQuarters(ctx context.Context, companyID int64) ([]string, error)
	ListVulnerabilities(ctx context.Context, params api.VulnerabilityParams) (*models.VulnerabilityPage, error)
}

// QueryState — явное значение "текущего запроса". Любое изменение фильтров
// порождает новое значение; ответы на устаревшие значения игнорируются.
type QueryState struct {
	Search  string
	Quarter string // игнорируется на вкладке carry-forward
	Tab     string
	Page    int // 1-based
}

// Browser выполняет выборку уязвимостей от имени одной сессии.
// Каждое изменение состояния (поиск, квартал, вкладка, страница)
// инкрементирует поколение запроса и отменяет незавершенный запрос;
// результат коммитится только если его поколение все еще актуально.
type Browser struct {
	retriever Retriever
	sess      *session.Session

	mu      sync.Mutex
	state   QueryState
	gen     uint64             // монотонный счетчик поколений запроса
	cancel  context.CancelFunc // отмена незавершенного запроса
	current *models.VulnerabilityPage
}

// NewBrowser создает Browser для указанной сессии.
// Истекшая или отсутствующая сессия - ErrUnauthorized: зависимые
// запросы не должны выполняться вовсе.
func NewBrowser(retriever Retriever, sess *session.Session) (*Browser, error) {
	if sess == nil || sess.Claims == nil || sess.Expired() {
		return nil, ErrUnauthorized
	}
	return &Browser{
		retriever: retriever,
		sess:      sess,
		state:     QueryState{Tab: TabQuarter, Page: 1},
	}, nil
}

// State возвращает копию текущего состояния запроса.
func (b *Browser) State() QueryState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Current возвращает последний принятый (не устаревший) результат выборки.
func (b *Browser) Current() *models.VulnerabilityPage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// bump инкрементирует поколение и отменяет незавершенный запрос.
// Вызывается под мьютексом.
func (b *Browser) bump() {
	b.gen++
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

// SetSearch устанавливает поисковую подстроку и сбрасывает страницу.
func (b *Browser) SetSearch(search string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Search = search
	b.state.Page = 1
	b.bump()
}

// SetQuarter устанавливает фильтр по кварталу и сбрасывает страницу.
func (b *Browser) SetQuarter(quarter string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Quarter = quarter
	b.state.Page = 1
	b.bump()
}

// SetTab переключает вкладку и сбрасывает страницу.
func (b *Browser) SetTab(tab string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Tab = tab
	b.state.Page = 1
	b.bump()
}

// SetPage устанавливает номер страницы. Значения меньше 1 трактуются как 1.
func (b *Browser) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Page = page
	b.bump()
}

// companyID возвращает тенанта сессии.
func (b *Browser) companyID() (int64, error) {
	if b.sess.Expired() {
		return 0, ErrUnauthorized
	}
	if b.sess.Claims.CompanyID == nil {
		return 0, ErrCompanyMissing
	}
	return *b.sess.Claims.CompanyID, nil
}

// Quarters возвращает каталог кварталов компании сессии в порядке обнаружения.
// Пустой каталог - валидный результат (новый тенант без загрузок).
func (b *Browser) Quarters(ctx context.Context) ([]string, error) {
	companyID, err := b.companyID()
	if err != nil {
		return nil, err
	}
	return b.retriever.ListQuarters(ctx, companyID)
}

// Fetch выполняет текущий запрос и возвращает страницу уязвимостей.
//
// На вкладке carry-forward применяется двухэтапный фильтр: коллаборатор
// отдает нерешенные уязвимости (isResolved=false + серверная подсказка
// carryForward), после чего классификатор models.IsCarryForward отсеивает
// уязвимости, наблюдавшиеся только в одном квартале. Уязвимость из одного
// квартала никогда не попадает в carry-forward, даже нерешенная.
//
// Если за время запроса состояние фильтров изменилось, результат
// отбрасывается с ErrStaleQuery и не перезаписывает более свежие данные.
func (b *Browser) Fetch(ctx context.Context) (*models.VulnerabilityPage, error) {
	companyID, err := b.companyID()
	if err != nil {
		return nil, err
	}

	// Фиксируем поколение и состояние, регистрируем отмену
	b.mu.Lock()
	gen := b.gen
	state := b.state
	fetchCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.mu.Unlock()
	defer cancel()

	params := api.VulnerabilityParams{
		CompanyID: companyID,
		Page:      state.Page,
		Search:    state.Search,
	}
	if state.Tab == TabCarryForward {
		// Этап 1: серверный фильтр по нерешенным
		unresolved := false
		params.IsResolved = &unresolved
		params.CarryForward = true
	} else if state.Quarter != "" {
		params.Quarter = state.Quarter
	}

	page, err := b.retriever.ListVulnerabilities(fetchCtx, params)
	if err != nil {
		if errors.Is(err, api.ErrAuthorization) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	// Этап 2: классификатор по членству в кварталах
	if state.Tab == TabCarryForward {
		filtered := make([]models.Vulnerability, 0, len(page.Items))
		for i := range page.Items {
			if models.IsCarryForward(&page.Items[i]) {
				filtered = append(filtered, page.Items[i])
			}
		}
		page.Items = filtered
	}

	// Коммитим результат, только если поколение не изменилось
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		log.Printf("[Browser] Ответ поколения %d отброшен: актуальное поколение %d", gen, b.gen)
		return nil, ErrStaleQuery
	}
	b.current = page

	return page, nil
}
