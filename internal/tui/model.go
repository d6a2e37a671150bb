package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"

	"github.com/evanschultz/kanbo/internal/app"
	"github.com/evanschultz/kanbo/internal/domain"
)

// TaskStore is the slice of app.Store the board drives.
type TaskStore interface {
	Initialize(context.Context, app.Source) error
	Tasks() []domain.Task
	Add(context.Context, string) (domain.Task, bool)
	Edit(context.Context, int64, string) bool
	Delete(context.Context, int64) bool
	SetStatus(context.Context, int64, domain.Status) (bool, error)
	Activity(context.Context, int) ([]domain.ChangeEvent, error)
}

// inputMode selects which modal owns the keyboard.
type inputMode int

const (
	modeNone inputMode = iota
	modeAddTask
	modeEditTask
	modeConfirmDelete
	modeTaskInfo
	modeActivityLog
)

const (
	activityLogLimit      = 50
	activityLogViewWindow = 14
	maxNotices            = 3
	taskTextLimit         = 240
)

// notice is a dismissible failure report from the store.
type notice struct {
	At   time.Time
	Text string
}

// Model is the bubbletea board.
type Model struct {
	store  TaskStore
	events <-chan app.Event
	source app.Source

	ready   bool
	width   int
	height  int
	loading bool
	status  string

	help     help.Model
	keys     keyMap
	spinner  spinner.Model
	markdown *markdownRenderer
	copyText func(string) error

	pager  app.Pager
	tasks  []domain.Task
	column int
	row    int

	mode          inputMode
	input         textinput.Model
	editingID     int64
	infoID        int64
	pendingDelete domain.Task
	confirmChoice int

	activity []domain.ChangeEvent
	notices  []notice
}

// loadedMsg reports the outcome of Initialize.
type loadedMsg struct {
	err error
}

// actionMsg reports the outcome of one mutation.
type actionMsg struct {
	err     error
	status  string
	focusID int64
}

// eventMsg carries one store notification.
type eventMsg struct {
	event app.Event
}

// eventsClosedMsg reports that the subscription ended.
type eventsClosedMsg struct{}

// activityLoadedMsg carries ledger entries for the activity modal.
type activityLoadedMsg struct {
	events []domain.ChangeEvent
	err    error
}

// copiedMsg reports a clipboard write.
type copiedMsg struct {
	text string
	err  error
}

// NewModel constructs a board over store.
func NewModel(store TaskStore, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		store:    store,
		source:   app.SourceAuto,
		loading:  true,
		status:   "loading...",
		help:     h,
		keys:     newKeyMap(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		markdown: &markdownRenderer{},
		copyText: clipboard.WriteAll,
		pager:    app.NewPager(app.DefaultPageSize, app.DefaultPageSizeOptions),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init starts the first load and, when configured, the event listener.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadData, m.spinner.Tick}
	if m.events != nil {
		cmds = append(cmds, waitForEvent(m.events))
	}
	return tea.Batch(cmds...)
}

// Update applies one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		m.help.SetWidth(max(0, msg.Width-2))
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		m.loading = false
		m.refresh()
		if msg.err != nil {
			m.pushNotice("load failed: " + msg.err.Error())
			m.status = "load failed"
			if isRemoteErr(msg.err) {
				m.status = "remote unavailable, showing current board"
			}
			return m, nil
		}
		m.status = "ready"
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		if msg.status != "" {
			m.status = msg.status
		}
		m.refresh()
		if msg.focusID != 0 {
			m.focusTask(msg.focusID)
		}
		return m, nil

	case eventMsg:
		m.handleEvent(msg.event)
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.events = nil
		return m, nil

	case activityLoadedMsg:
		if msg.err != nil {
			m.status = "activity log unavailable: " + msg.err.Error()
			return m, nil
		}
		m.activity = msg.events
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("copied %q", truncate(msg.text, 32))
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	default:
		return m, nil
	}
}

// loadData seeds the store from the configured source.
func (m Model) loadData() tea.Msg {
	return loadedMsg{err: m.store.Initialize(context.Background(), m.source)}
}

// loadActivityLog fetches the most recent ledger entries.
func (m Model) loadActivityLog() tea.Msg {
	events, err := m.store.Activity(context.Background(), activityLogLimit)
	return activityLoadedMsg{events: events, err: err}
}

// waitForEvent blocks until the store publishes the next notification.
func waitForEvent(events <-chan app.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

// handleEvent refreshes the board and records failures as notices.
func (m *Model) handleEvent(ev app.Event) {
	switch ev.Kind {
	case app.EventSyncFailed:
		m.pushNotice(fmt.Sprintf("sync %s failed for task %d: %v", ev.Op, ev.TaskID, ev.Err))
	case app.EventLoadFailed:
		m.pushNotice(fmt.Sprintf("load from %s failed: %v", ev.Op, ev.Err))
	case app.EventMirrorFailed:
		m.pushNotice(fmt.Sprintf("local save failed: %v", ev.Err))
	case app.EventLoaded:
		m.loading = false
	}
	m.refresh()
}

func (m *Model) pushNotice(text string) {
	m.notices = append(m.notices, notice{At: time.Now(), Text: text})
	if len(m.notices) > maxNotices {
		m.notices = slices.Clone(m.notices[len(m.notices)-maxNotices:])
	}
}

// refresh re-reads the collection and pulls the cursor back into range.
func (m *Model) refresh() {
	m.tasks = m.store.Tasks()
	m.pager.Clamp(m.tasks)
	m.clampRow()
}

func (m *Model) clampRow() {
	col := m.currentColumn()
	m.row = clamp(m.row, 0, len(col.Tasks)-1)
}

// currentStatus returns the status of the focused column.
func (m Model) currentStatus() domain.Status {
	return domain.StatusAt(m.column)
}

// currentColumn returns the visible page of the focused column.
func (m Model) currentColumn() app.ColumnPage {
	return m.pager.Project(m.tasks).Column(m.currentStatus())
}

// selectedTask returns the task under the cursor.
func (m Model) selectedTask() (domain.Task, bool) {
	col := m.currentColumn()
	if m.row < 0 || m.row >= len(col.Tasks) {
		return domain.Task{}, false
	}
	return col.Tasks[m.row], true
}

// focusTask moves the cursor to id, switching column and page as needed.
func (m *Model) focusTask(id int64) {
	for status, tasks := range app.Partition(m.tasks) {
		for pos, task := range tasks {
			if task.ID != id {
				continue
			}
			m.column = status.Index()
			m.pager.Reveal(status, pos)
			m.row = pos % m.pager.Size()
			return
		}
	}
}

func (m Model) taskByID(id int64) (domain.Task, bool) {
	idx := slices.IndexFunc(m.tasks, func(t domain.Task) bool { return t.ID == id })
	if idx < 0 {
		return domain.Task{}, false
	}
	return m.tasks[idx], true
}

// handleNormalModeKey handles keys while no modal is open.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.dismiss):
		if m.help.ShowAll {
			m.help.ShowAll = false
			return m, nil
		}
		if len(m.notices) > 0 {
			m.notices = nil
			m.status = "notifications cleared"
		}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.loading = true
		m.status = "reloading..."
		return m, tea.Batch(m.loadData, m.spinner.Tick)
	case key.Matches(msg, m.keys.columnLeft):
		if m.column > 0 {
			m.column--
			m.clampRow()
		}
		return m, nil
	case key.Matches(msg, m.keys.columnRight):
		if m.column < len(domain.Statuses())-1 {
			m.column++
			m.clampRow()
		}
		return m, nil
	case key.Matches(msg, m.keys.taskUp):
		if m.row > 0 {
			m.row--
		}
		return m, nil
	case key.Matches(msg, m.keys.taskDown):
		if m.row < len(m.currentColumn().Tasks)-1 {
			m.row++
		}
		return m, nil
	case key.Matches(msg, m.keys.pagePrev):
		m.pager.Prev(m.currentStatus())
		m.row = 0
		return m, nil
	case key.Matches(msg, m.keys.pageNext):
		m.pager.Next(m.currentStatus(), m.currentColumn().PageCount)
		m.row = 0
		return m, nil
	case key.Matches(msg, m.keys.pageSize):
		m.pager.CycleSize(m.tasks)
		m.clampRow()
		m.status = fmt.Sprintf("page size %d", m.pager.Size())
		return m, nil
	case key.Matches(msg, m.keys.addTask):
		m.help.ShowAll = false
		cmd := m.startTaskInput(nil)
		return m, cmd
	case key.Matches(msg, m.keys.editTask):
		task, ok := m.selectedTask()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.help.ShowAll = false
		cmd := m.startTaskInput(&task)
		return m, cmd
	case key.Matches(msg, m.keys.deleteTask):
		task, ok := m.selectedTask()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.pendingDelete = task
		m.confirmChoice = 1
		m.status = "confirm delete"
		return m, nil
	case key.Matches(msg, m.keys.taskInfo):
		task, ok := m.selectedTask()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.help.ShowAll = false
		m.mode = modeTaskInfo
		m.infoID = task.ID
		m.status = "task info"
		return m, nil
	case key.Matches(msg, m.keys.moveTaskLeft):
		return m.moveSelectedTask(m.column - 1)
	case key.Matches(msg, m.keys.moveTaskRight):
		return m.moveSelectedTask(m.column + 1)
	case key.Matches(msg, m.keys.copyTask):
		task, ok := m.selectedTask()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		copyText := m.copyText
		return m, func() tea.Msg {
			return copiedMsg{text: task.Text, err: copyText(task.Text)}
		}
	case key.Matches(msg, m.keys.activityLog):
		m.help.ShowAll = false
		m.mode = modeActivityLog
		m.status = "activity log"
		return m, m.loadActivityLog
	}
	for idx, binding := range m.keys.moveTargets() {
		if key.Matches(msg, binding) {
			return m.moveSelectedTask(idx)
		}
	}
	return m, nil
}

// handleInputModeKey routes keys to the open modal.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeAddTask, modeEditTask:
		switch msg.String() {
		case "esc":
			m.mode = modeNone
			m.input.Blur()
			m.status = "cancelled"
			return m, nil
		case "enter":
			return m.submitTaskInput()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case modeConfirmDelete:
		switch msg.String() {
		case "esc", "n":
			return m.cancelConfirm()
		case "h", "left", "l", "right", "tab":
			m.confirmChoice = 1 - m.confirmChoice
			return m, nil
		case "y":
			return m.applyDelete()
		case "enter":
			if m.confirmChoice == 1 {
				return m.cancelConfirm()
			}
			return m.applyDelete()
		}
		return m, nil

	case modeTaskInfo:
		switch {
		case msg.String() == "esc", key.Matches(msg, m.keys.taskInfo), key.Matches(msg, m.keys.quit):
			m.mode = modeNone
			m.infoID = 0
			m.status = "ready"
			return m, nil
		case key.Matches(msg, m.keys.editTask):
			task, ok := m.taskByID(m.infoID)
			if !ok {
				m.mode = modeNone
				return m, nil
			}
			cmd := m.startTaskInput(&task)
			return m, cmd
		}
		return m, nil

	case modeActivityLog:
		switch {
		case msg.String() == "esc", key.Matches(msg, m.keys.activityLog), key.Matches(msg, m.keys.quit):
			m.mode = modeNone
			m.status = "ready"
		}
		return m, nil
	}
	return m, nil
}

// startTaskInput opens the text modal for a new task, or for editing task.
func (m *Model) startTaskInput(task *domain.Task) tea.Cmd {
	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "what needs doing?"
	in.CharLimit = taskTextLimit
	in.SetWidth(clamp(m.width-16, 20, 72))
	if task != nil {
		in.SetValue(task.Text)
		m.mode = modeEditTask
		m.editingID = task.ID
		m.status = "edit task"
	} else {
		m.mode = modeAddTask
		m.editingID = 0
		m.status = "new task"
	}
	m.input = in
	return m.input.Focus()
}

// submitTaskInput applies the text modal.
func (m Model) submitTaskInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	mode, id := m.mode, m.editingID
	m.mode = modeNone
	m.editingID = 0
	m.input.Blur()
	if text == "" {
		m.status = "empty task ignored"
		return m, nil
	}
	store := m.store
	if mode == modeEditTask {
		return m, func() tea.Msg {
			if !store.Edit(context.Background(), id, text) {
				return actionMsg{status: "task not found"}
			}
			return actionMsg{status: "task updated", focusID: id}
		}
	}
	return m, func() tea.Msg {
		task, ok := store.Add(context.Background(), text)
		if !ok {
			return actionMsg{status: "empty task ignored"}
		}
		return actionMsg{status: "task added", focusID: task.ID}
	}
}

func (m Model) cancelConfirm() (tea.Model, tea.Cmd) {
	m.mode = modeNone
	m.pendingDelete = domain.Task{}
	m.status = "cancelled"
	return m, nil
}

// applyDelete removes the task pending confirmation.
func (m Model) applyDelete() (tea.Model, tea.Cmd) {
	task := m.pendingDelete
	m.mode = modeNone
	m.pendingDelete = domain.Task{}
	m.confirmChoice = 0
	store := m.store
	return m, func() tea.Msg {
		if !store.Delete(context.Background(), task.ID) {
			return actionMsg{status: "task not found"}
		}
		return actionMsg{status: fmt.Sprintf("deleted %q", truncate(task.Text, 32))}
	}
}

// moveSelectedTask sets the selected task's status to the column at target.
func (m Model) moveSelectedTask(target int) (tea.Model, tea.Cmd) {
	task, ok := m.selectedTask()
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	if target < 0 || target >= len(domain.Statuses()) {
		m.status = "no column that way"
		return m, nil
	}
	status := domain.StatusAt(target)
	if status == task.Status {
		m.status = "already in " + status.Title()
		return m, nil
	}
	store := m.store
	return m, func() tea.Msg {
		moved, err := store.SetStatus(context.Background(), task.ID, status)
		if err != nil {
			return actionMsg{err: err}
		}
		if !moved {
			return actionMsg{err: fmt.Errorf("move task %d: %w", task.ID, app.ErrNotFound)}
		}
		return actionMsg{status: "moved to " + status.Title(), focusID: task.ID}
	}
}

// activitySummary renders one ledger entry as a short line.
func activitySummary(event domain.ChangeEvent) string {
	switch event.Operation {
	case domain.ChangeOperationCreate:
		return fmt.Sprintf("added #%d %q", event.TaskID, event.Metadata["text"])
	case domain.ChangeOperationUpdate:
		return fmt.Sprintf("renamed #%d to %q", event.TaskID, event.Metadata["to_text"])
	case domain.ChangeOperationMove:
		return fmt.Sprintf("moved #%d %s → %s", event.TaskID, event.Metadata["from_status"], event.Metadata["to_status"])
	case domain.ChangeOperationDelete:
		return fmt.Sprintf("deleted #%d %q", event.TaskID, event.Metadata["text"])
	case domain.ChangeOperationLoad:
		return fmt.Sprintf("loaded %s tasks from %s", event.Metadata["count"], event.Metadata["source"])
	default:
		return string(event.Operation)
	}
}

// isRemoteErr reports whether err came from the remote collaborator.
func isRemoteErr(err error) bool {
	return errors.Is(err, app.ErrRemote)
}
