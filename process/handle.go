package process

type void = struct{}

// Tag names the variant of a Handle.
type Tag string

const (
	TagGroup  Tag = "group"
	TagSingle Tag = "single"
)

// Handle is a live worker process reference.
// It is implemented only by *GroupHandle and *SingleHandle.
type Handle interface {
	Pid() int
	Tag() Tag
	handle()
}

type (
	// GroupHandle owns a process which leads its own process group.
	GroupHandle struct {
		pgid   int
		kill   func(pgid int) error
		exited <-chan void
	}

	// SingleHandle owns exactly one process, its descendants are not tracked.
	SingleHandle struct {
		pid    int
		kill   func(pid int) error
		exited <-chan void
	}
)

// NewGroupHandle wraps a process group leader.
// kill receives the group id and must signal the whole group.
func NewGroupHandle(pgid int, kill func(pgid int) error) *GroupHandle {
	return &GroupHandle{pgid: pgid, kill: kill}
}

// NewSingleHandle wraps a single process.
func NewSingleHandle(pid int, kill func(pid int) error) *SingleHandle {
	return &SingleHandle{pid: pid, kill: kill}
}

func (h *GroupHandle) Pid() int { return h.pgid }
func (h *GroupHandle) Tag() Tag { return TagGroup }
func (*GroupHandle) handle()    {}

// KillGroup terminates every process in the group and waits for the leader
// to be reaped. Killing an already reaped group is an error.
func (h *GroupHandle) KillGroup() error {
	if err := h.kill(h.pgid); err != nil {
		return err
	}
	if h.exited != nil {
		<-h.exited
	}
	return nil
}

func (h *SingleHandle) Pid() int { return h.pid }
func (h *SingleHandle) Tag() Tag { return TagSingle }
func (*SingleHandle) handle()    {}

// Kill terminates the process and waits for it to be reaped.
// Killing an already reaped process is an error.
func (h *SingleHandle) Kill() error {
	if err := h.kill(h.pid); err != nil {
		return err
	}
	if h.exited != nil {
		<-h.exited
	}
	return nil
}

var (
	_ Handle = new(GroupHandle)
	_ Handle = new(SingleHandle)
)
