package analysis

// Category prompt templates. Arguments: 1 participants, 2 context,
// 3 stats summary. Each demands balanced coverage of both people and a
// strict JSON reply.
const (
	conversationDynamicsPrompt = `You are analyzing a chat between %[1]s.

Conversation sample:
%[2]s

Statistics:
%[3]s

IMPORTANT: Your analysis must be BALANCED and mention BOTH people equally.
Use their actual names: %[1]s

Answer these questions with 2-3 sentences each:

1. INITIATOR_SUMMARY: Describe how EACH person starts conversations. What does each person typically say to start?
2. FLOW_PATTERN: How do their conversations flow? Describe what EACH person contributes to the conversation dynamic.
3. TOPIC_SHIFTS: What topics does EACH person bring up? How do they influence the conversation direction?

Respond ONLY with valid JSON:
{"initiator_summary": "...", "flow_pattern": "...", "topic_shifts": "..."}`

	emotionalHealthPrompt = `You are analyzing emotional dynamics between %[1]s.

Conversation sample:
%[2]s

Statistics:
%[3]s

IMPORTANT: Be BALANCED and describe BOTH people's emotional patterns equally.
Use their actual names: %[1]s

Answer these questions:

1. OVERALL_SENTIMENT: Describe the emotional tone. How does each person express emotions?
2. HEALTH_ASSESSMENT: What makes this relationship healthy? Mention positive behaviors from BOTH people.
3. RED_FLAGS: List concerning patterns (max 2 short phrases, or [] if none)
4. GREEN_FLAGS: List positive patterns showing good behavior from BOTH people (max 2 short phrases)

Respond ONLY with valid JSON:
{"overall_sentiment": "...", "health_assessment": "...", "red_flags": [], "green_flags": []}`

	engagementPrompt = `You are analyzing engagement between %[1]s.

Conversation sample:
%[2]s

Statistics:
%[3]s

IMPORTANT: Describe BOTH people's engagement equally. Don't focus on just one person.
Use their actual names: %[1]s

Answer these questions:

1. BALANCE_SUMMARY: Compare BOTH people's effort. Be fair to both.
2. EFFORT_ASSESSMENT: Describe how EACH person shows investment in the conversation.
3. ENGAGEMENT_SCORE: Rate balance 0-100 (50 = equal, higher = first person more engaged, lower = second person more engaged)

Respond ONLY with valid JSON:
{"balance_summary": "...", "effort_assessment": "...", "engagement_score": 55}`

	sharingBalancePrompt = `You are analyzing personal sharing between %[1]s.

Conversation sample:
%[2]s

Statistics:
%[3]s

IMPORTANT: Analyze BOTH people's sharing patterns fairly.
Use their actual names: %[1]s

Answer these questions:

1. SHARING_SUMMARY: What personal topics does EACH person share? Be specific about BOTH.
2. QUESTION_BALANCE: How does EACH person show interest in the other? Describe both.
3. RECIPROCITY_SCORE: Rate reciprocity 0-100 (50 = perfectly balanced sharing)

Respond ONLY with valid JSON:
{"sharing_summary": "...", "question_balance": "...", "reciprocity_score": 55}`
)
