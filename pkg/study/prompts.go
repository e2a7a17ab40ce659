package study

const topicsInstruction = "You are a study assistant. Extract the 5 most important concepts from the text below. " +
	`Return them strictly as a JSON list of strings (e.g. ["Concept 1", "Concept 2"]). ` +
	"Do not add markdown formatting. Text: "

var feedbackTone = map[Difficulty]string{
	Easy: "You are a gentle, encouraging tutor teaching a beginner. Use simple language (ELI5), avoid jargon, " +
		"and focus on the big picture. If they are close, give them credit.",
	Medium: "You are a helpful study assistant. Verify accuracy and correct mistakes clearly, " +
		"but keep the conversation flowing naturally.",
	Hard: "You are a strict, Socratic professor at a top university. Challenge the user's assumptions, " +
		"demand precise terminology, and point out even small logical flaws.",
}

var analogyStyle = map[Difficulty]string{
	Easy:   "Use a very simple, real-world analogy (like cooking, sports, or simple machines) that a 10-year-old could understand.",
	Medium: "Use a standard, relatable analogy suitable for a college student.",
	Hard:   "Use a sophisticated, abstract, or technical analogy suitable for an expert or graduate student.",
}

func topicsPrompt(text string) string {
	return topicsInstruction + text
}

func assessPrompt(concept, explanation string, d Difficulty) string {
	return feedbackTone[d] + "\n\n" +
		"Concept: " + concept + "\n" +
		"Student Explanation: " + explanation + "\n\n" +
		"Provide feedback on their explanation."
}

func analogyPrompt(concept string, d Difficulty) string {
	return "Give a creative analogy to explain the concept: " + concept + ".\n" +
		analogyStyle[d] + "\n" +
		"Keep it concise."
}
