package tui

import "charm.land/bubbles/v2/key"

// keyMap holds every board binding.
type keyMap struct {
	quit          key.Binding
	reload        key.Binding
	toggleHelp    key.Binding
	columnLeft    key.Binding
	columnRight   key.Binding
	taskUp        key.Binding
	taskDown      key.Binding
	pagePrev      key.Binding
	pageNext      key.Binding
	pageSize      key.Binding
	addTask       key.Binding
	editTask      key.Binding
	deleteTask    key.Binding
	taskInfo      key.Binding
	moveTaskLeft  key.Binding
	moveTaskRight key.Binding
	moveToTodo    key.Binding
	moveToDoing   key.Binding
	moveToDone    key.Binding
	copyTask      key.Binding
	activityLog   key.Binding
	dismiss       key.Binding
}

// newKeyMap returns the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		columnLeft:    key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		columnRight:   key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		taskUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		taskDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		pagePrev:      key.NewBinding(key.WithKeys(",", "pgup"), key.WithHelp(",", "prev page")),
		pageNext:      key.NewBinding(key.WithKeys(".", "pgdown"), key.WithHelp(".", "next page")),
		pageSize:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "page size")),
		addTask:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		editTask:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit task")),
		deleteTask:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete task")),
		taskInfo:      key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "task info")),
		moveTaskLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move task left")),
		moveTaskRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move task right")),
		moveToTodo:    key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "move to todo")),
		moveToDoing:   key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "move to in progress")),
		moveToDone:    key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "move to done")),
		copyTask:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy text")),
		activityLog:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "activity log")),
		dismiss:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss")),
	}
}

// moveTargets maps the direct-move bindings to column indexes.
func (k keyMap) moveTargets() []key.Binding {
	return []key.Binding{k.moveToTodo, k.moveToDoing, k.moveToDone}
}

// ShortHelp returns the bindings shown in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.addTask, k.editTask, k.deleteTask, k.moveTaskLeft, k.moveTaskRight, k.taskInfo, k.toggleHelp, k.quit,
	}
}

// FullHelp returns every binding grouped by purpose.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.addTask, k.editTask, k.deleteTask, k.taskInfo, k.copyTask, k.activityLog},
		{k.columnLeft, k.columnRight, k.taskUp, k.taskDown, k.pagePrev, k.pageNext, k.pageSize},
		{k.moveTaskLeft, k.moveTaskRight, k.moveToTodo, k.moveToDoing, k.moveToDone},
		{k.dismiss, k.reload, k.toggleHelp, k.quit},
	}
}
