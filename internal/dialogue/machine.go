// Package dialogue implements the guided topic flow that narrows a new
// conversation before free-form model replies take over.
package dialogue

import (
	"strings"
	"sync"
	"time"

	"github.com/phantasma-ai/specky/internal/model"
)

// State is a position in the guided flow.
type State int

const (
	Init State = iota
	Free
	DevMode
	CommunityMode
	SupportMode
	GameEnginesMode
	EducationMode
)

var stateNames = [...]string{
	Init:            "init",
	Free:            "free",
	DevMode:         "dev",
	CommunityMode:   "community",
	SupportMode:     "support",
	GameEnginesMode: "game_engines",
	EducationMode:   "education",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Tools is the capability profile accumulated during the guided flow.
type Tools uint

const (
	ToolNone       Tools = 0
	ToolLink       Tools = 1 << 0
	ToolScript     Tools = 1 << 1
	ToolGameEngine Tools = 1 << 2
	ToolWallet     Tools = 1 << 3
	ToolHTML       Tools = 1 << 4
	ToolStorage    Tools = 1 << 5
)

// canonicalTools is the order in which rules are emitted.
var canonicalTools = []Tools{ToolNone, ToolLink, ToolScript, ToolGameEngine, ToolWallet, ToolHTML, ToolStorage}

// Has reports whether every bit of flag is set.
func (t Tools) Has(flag Tools) bool {
	return t&flag == flag
}

const (
	// Greeting opens every new conversation.
	Greeting = "Hello Souldier, what do you want to build today?"

	// ErrorReply answers selections that cannot be understood.
	ErrorReply = "I'm so sorry... an error happened in my artificial brain."

	gameEngineTools = ToolScript | ToolGameEngine | ToolLink | ToolWallet
	educationTools  = ToolScript | ToolLink | ToolWallet | ToolHTML

	roleDevelopment = "information about development"
	roleCommunity   = "information about Phantasma project"
	roleSupport     = "customer support"
	roleDefault     = "information"
)

var supportOpeners = [...]string{
	"What specific issue can I help you with?",
	"Please describe the problem you're facing.",
	"Tell me more about your concern.",
	"What seems to be the trouble?",
	"Can you provide more details about your issue?",
	"Let's dive in. What do you need help with?",
	"I'm here to help! What's on your mind?",
	"Can you elaborate on your problem?",
	"Please specify the challenge you're encountering.",
}

// OpeningMenu is the greeting followed by the initial topic menu.
func OpeningMenu() string {
	return Menu(Greeting, InitialTopics)
}

// Profile is the per-session dialogue state.
type Profile struct {
	State  State
	Tools  Tools
	Engine GameEngine
	Role   string
}

// NewProfile returns the profile of a session that has not chosen anything.
func NewProfile() Profile {
	return Profile{State: Init, Engine: OtherEngine, Role: roleDefault}
}

// Outcome is the result of feeding one user answer to the machine.
type Outcome struct {
	// Reply is the canned assistant answer; empty when Canned is false.
	Reply  string
	Canned bool
	// Answer is the user text to store. A recognized menu selection is
	// replaced by its caption.
	Answer string
}

// Advance applies the transition function to a profile. It is pure apart
// from reading now for the support opener.
func Advance(p Profile, raw string, now time.Time) (Profile, Outcome) {
	out := Outcome{Answer: raw}

	canned := func(reply string) (Profile, Outcome) {
		out.Reply = reply
		out.Canned = true
		return p, out
	}

	switch p.State {
	case Init:
		opt, ok := Select(InitialTopics, raw)
		if !ok {
			return canned(ErrorReply)
		}
		out.Answer = opt.Caption
		switch opt.Tag {
		case IWantToBuild:
			p.State = DevMode
			p.Role = roleDevelopment
			return canned(Menu("Sure, what specifically?", DevTopics))
		case QuestionsAboutPhantasma:
			p.State = CommunityMode
			p.Role = roleCommunity
			return canned(Menu("Sure, what specifically?", DevTopics))
		default:
			p.State = Free
			p.Role = roleSupport
			idx := now.UnixNano() % int64(len(supportOpeners))
			if idx < 0 {
				idx = -idx
			}
			return canned("I'd like to help you with Phantasma.\n" + supportOpeners[idx])
		}

	case DevMode:
		opt, ok := Select(DevTopics, raw)
		if !ok {
			return canned(ErrorReply)
		}
		out.Answer = opt.Caption
		switch opt.Tag {
		case GamingAndVirtualWorlds:
			p.State = GameEnginesMode
			return canned(Menu("What game engine are you interested in using?", GameEngines))
		case EducationAndTraining:
			p.State = EducationMode
			return canned(Menu("What kind of dapp are you interested in building?", EducationTopics))
		default:
			// No guided follow-up for this topic. The state stays put and the
			// model answers.
			return p, out
		}

	case GameEnginesMode:
		opt, ok := Select(GameEngines, raw)
		if !ok {
			return canned(ErrorReply)
		}
		out.Answer = opt.Caption
		p.Engine = opt.Tag
		p.Tools |= gameEngineTools
		p.State = Free
		if _, known := Knowledge(opt.Tag); !known {
			return canned("I don't know details other game engine integrations.\n" +
				"However if this engine uses a programming language supported by Phantasma, I can help you write a custom integration!")
		}
		return canned("Sure, describe me your situation.\n" +
			"Are you starting a game from scratch in " + opt.Caption + " engine?\n" +
			"Or do you have an existing game that you wish to integrate with Phantasma?")

	case EducationMode:
		opt, ok := Select(EducationTopics, raw)
		if !ok {
			return canned(ErrorReply)
		}
		out.Answer = opt.Caption
		p.Tools |= educationTools
		p.State = Free
		if knowledge, known := Knowledge(opt.Tag); known {
			return canned("That's an excellent idea for a dapp!\n" + knowledge +
				", etc.\nI'm sure you have your own ideas about this, tell me more details!")
		}
		return p, out
	}

	// Free, CommunityMode and SupportMode hand every answer to the model.
	return p, out
}

// Restore rebuilds a profile from stored history. Only the top-level branch
// is recovered, from the first user answer of a conversation with more than
// two turns.
func Restore(turns []model.Turn) Profile {
	p := NewProfile()
	if len(turns) <= 2 {
		return p
	}

	conv := model.Conversation{Turns: turns}
	first, ok := conv.FirstUserTurn()
	if !ok {
		return p
	}

	switch strings.TrimSpace(first.Text) {
	case InitialTopics[IWantToBuild].Caption:
		p.State = DevMode
		p.Role = roleDevelopment
	case InitialTopics[QuestionsAboutPhantasma].Caption:
		p.State = CommunityMode
		p.Role = roleCommunity
	case InitialTopics[CustomerSupport].Caption:
		p.State = Free
		p.Role = roleSupport
	}
	return p
}

// Machine is the dialogue state of one session. It is safe for concurrent
// use.
type Machine struct {
	clock func() time.Time

	mu      sync.Mutex
	profile Profile
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithClock overrides the time source used to pick the support opener.
func WithClock(clock func() time.Time) MachineOption {
	return func(m *Machine) {
		m.clock = clock
	}
}

// NewMachine creates a machine restored from a session's stored turns.
func NewMachine(turns []model.Turn, opts ...MachineOption) *Machine {
	m := &Machine{
		clock:   time.Now,
		profile: Restore(turns),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Advance feeds one user answer to the machine.
func (m *Machine) Advance(raw string) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, out := Advance(m.profile, raw, m.clock())
	m.profile = next
	return out
}

// Next computes the transition for one user answer without applying it.
// Callers apply the returned profile with Commit once the answer is stored.
func (m *Machine) Next(raw string) (Profile, Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Advance(m.profile, raw, m.clock())
}

// Commit replaces the current profile.
func (m *Machine) Commit(p Profile) {
	m.mu.Lock()
	m.profile = p
	m.mu.Unlock()
}

// Profile returns a copy of the current profile.
func (m *Machine) Profile() Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// State returns the current state.
func (m *Machine) State() State {
	return m.Profile().State
}

// Rules builds the system prompt for the current profile.
func (m *Machine) Rules() string {
	return Rules(m.Profile())
}
