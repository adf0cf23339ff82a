package dialogue

import (
	"fmt"
	"strconv"
	"strings"
)

// Option is one entry of a numbered menu.
type Option[T comparable] struct {
	Tag     T
	Caption string
}

// Select parses a 1-based menu selection. Surrounding whitespace is
// ignored; anything else that is not an index into options fails.
func Select[T comparable](options []Option[T], raw string) (Option[T], bool) {
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || idx < 1 || idx > len(options) {
		return Option[T]{}, false
	}
	return options[idx-1], true
}

// Menu renders prompt followed by one numbered line per option.
func Menu[T comparable](prompt string, options []Option[T]) string {
	var sb strings.Builder
	sb.WriteString(prompt)
	for i, opt := range options {
		fmt.Fprintf(&sb, "\n%d)%s", i+1, opt.Caption)
	}
	return sb.String()
}

// Caption turns a topic identifier such as "Health_And_Wellness" into
// "Health & Wellness".
func Caption(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, "_And_", " & "), "_", " ")
}

// InitialTopic is the first choice offered to every new session.
type InitialTopic int

const (
	IWantToBuild InitialTopic = iota
	QuestionsAboutPhantasma
	CustomerSupport
)

// DevTopic narrows what a builder wants to make.
type DevTopic int

const (
	GamingAndVirtualWorlds DevTopic = iota
	DecentralizedFinance
	Gambling
	SocialMediaAndContentPlatforms
	MarketplacesAndNFTsPlatforms
	SupplyChainAndAuthentication
	HealthAndWellness
	EducationAndTraining
	WalletsAndExplorers
	OtherDevTopic
)

// GameEngine identifies the engine a game integration targets.
type GameEngine int

const (
	Unity GameEngine = iota
	Unreal
	Godot
	OtherEngine
)

// EducationTopic is the kind of education dapp being discussed.
type EducationTopic int

const (
	DecentralizedCoursePlatforms EducationTopic = iota
	SecureExamAndCertificationSystems
	InteractiveLearningPlatforms
	DecentralizedKnowledgeBases
	SkillTokenization
	CollaborativeResearchPlatforms
)

var (
	InitialTopics = []Option[InitialTopic]{
		{IWantToBuild, Caption("I_Want_To_Build")},
		{QuestionsAboutPhantasma, Caption("Questions_About_Phantasma")},
		{CustomerSupport, Caption("Customer_Support")},
	}

	DevTopics = []Option[DevTopic]{
		{GamingAndVirtualWorlds, Caption("Gaming_And_Virtual_Worlds")},
		{DecentralizedFinance, Caption("Decentralized_Finance")},
		{Gambling, Caption("Gambling")},
		{SocialMediaAndContentPlatforms, Caption("Social_Media_And_Content_Platforms")},
		{MarketplacesAndNFTsPlatforms, Caption("Marketplaces_And_NFTs_Platforms")},
		{SupplyChainAndAuthentication, Caption("Supply_Chain_And_Authentication")},
		{HealthAndWellness, Caption("Health_And_Wellness")},
		{EducationAndTraining, Caption("Education_And_Training")},
		{WalletsAndExplorers, Caption("Wallets_And_Explorers")},
		{OtherDevTopic, Caption("Other")},
	}

	GameEngines = []Option[GameEngine]{
		{Unity, Caption("Unity")},
		{Unreal, Caption("Unreal")},
		{Godot, Caption("Godot")},
		{OtherEngine, Caption("Other")},
	}

	EducationTopics = []Option[EducationTopic]{
		{DecentralizedCoursePlatforms, Caption("Decentralized_Course_Platforms")},
		{SecureExamAndCertificationSystems, Caption("Secure_Exam_And_Certification_Systems")},
		{InteractiveLearningPlatforms, Caption("Interactive_Learning_Platforms")},
		{DecentralizedKnowledgeBases, Caption("Decentralized_Knowledge_Bases")},
		{SkillTokenization, Caption("Skill_Tokenization")},
		{CollaborativeResearchPlatforms, Caption("Collaborative_Research_Platforms")},
	}
)

// String returns the engine's menu caption.
func (e GameEngine) String() string {
	for _, opt := range GameEngines {
		if opt.Tag == e {
			return opt.Caption
		}
	}
	return "Other"
}
