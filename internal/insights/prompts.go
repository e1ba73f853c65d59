package insights

// Narrative prompts. Each level hands the generator only the previous
// level's output plus participant names, never the raw transcript.
const (
	weekNarrativePrompt = `Based on these conversation samples between %s and %s, write a 1-2 sentence summary of what they talked about this week. Focus on specific topics, events, or themes, not generic descriptions.

CONVERSATION SAMPLES:
%s

Write a natural, specific summary (1-2 sentences only).
Summary:`

	monthNarrativePrompt = `These are weekly conversation summaries between %s and %s over one month. Combine them into a single cohesive 1-2 sentence summary of the month. Keep specific topics and events, drop repetition.

WEEKLY SUMMARIES:
%s

Summary:`

	yearNarrativePrompt = `These are monthly conversation summaries between %s and %s for %d. Write a 1-2 sentence description of how their conversations evolved over the year.

MONTHLY SUMMARIES:
%s

Summary:`
)
