package dialogue

// KnowledgeKey is a topic the knowledge base can hold text for. It is
// implemented only by GameEngine and EducationTopic.
type KnowledgeKey interface {
	knowledgeKey()
}

func (GameEngine) knowledgeKey()     {}
func (EducationTopic) knowledgeKey() {}

var knowledgeBase = map[KnowledgeKey]string{
	Unity:  "The Unity SDK for Phantasma is available at https://github.com/phantasma-io/Phantasma-UnitySDK",
	Unreal: "The Unreal SDK for Phantasma is available at https://github.com/phantasma-io/Phantasma-CPP",
	Godot:  "The Godot SDK for Phantasma is available at https://github.com/phantasma-io/Phantasma-Godot",

	DecentralizedCoursePlatforms:      "Instructors can upload their courses, get paid directly in crypto, and students can verify the authenticity of their certifications on the blockchain",
	SecureExamAndCertificationSystems: "Provide tamper-proof certification for learners, ensuring that their achievements are genuine and verifiable",
	InteractiveLearningPlatforms:      "Incorporate gamified learning elements with token rewards, boosting engagement",
	DecentralizedKnowledgeBases:       "Allow community contributors to add information and get rewarded based on the quality and usefulness of their contributions",
	SkillTokenization:                 "As learners complete courses or show proficiency in certain skills, they can earn tokens representing their knowledge, which can be shown to potential employers or institutions",
	CollaborativeResearchPlatforms:    "Researchers can collaborate on projects, share data, and even tokenize research findings",
}

// Knowledge returns what the assistant knows about a topic.
func Knowledge(key KnowledgeKey) (string, bool) {
	text, ok := knowledgeBase[key]
	return text, ok
}
