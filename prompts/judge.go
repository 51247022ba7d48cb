package prompts

// JudgeSystemPrompt is sent as the system instruction of every metric call.
const JudgeSystemPrompt = `You are a meticulous evaluator of retrieval-augmented answers. You only answer with the JSON document requested, without commentary.`

var ContextPrecisionPrompt = NewPromptTemplate(
	`Given a question, a reference answer and a numbered list of retrieved contexts, decide for each context whether it was useful in arriving at the reference answer.

Question: {{.question}}

Reference answer: {{.reference}}

Contexts:
{{.contexts}}

Return JSON of the form {"verdicts": [{"index": 1, "reason": "...", "verdict": 1}]} with exactly one entry per context, in order. verdict is 1 if the context was useful and 0 otherwise.`)

var ContextRecallPrompt = NewPromptTemplate(
	`Break the reference answer into standalone statements. For each statement decide whether it can be attributed to the retrieved contexts.

Question: {{.question}}

Reference answer: {{.reference}}

Contexts:
{{.contexts}}

Return JSON of the form {"classifications": [{"statement": "...", "reason": "...", "attributed": 1}]}. attributed is 1 if the contexts support the statement and 0 otherwise.`)

var StatementExtractionPrompt = NewPromptTemplate(
	`Break the answer below into short, self-contained factual statements. Resolve pronouns so every statement can be understood on its own.

Question: {{.question}}

Answer: {{.answer}}

Return JSON of the form {"statements": ["...", "..."]}.`)

var FaithfulnessPrompt = NewPromptTemplate(
	`Judge whether each statement can be directly inferred from the contexts.

Contexts:
{{.contexts}}

Statements:
{{.statements}}

Return JSON of the form {"verdicts": [{"statement": "...", "reason": "...", "verdict": 1}]} with one entry per statement, in order. verdict is 1 if the statement is supported by the contexts and 0 otherwise.`)

var NoiseSensitivityPrompt = NewPromptTemplate(
	`For each statement taken from a generated answer, decide two things: whether it is correct according to the reference answer, and whether any of the retrieved contexts supports it.

Question: {{.question}}

Reference answer: {{.reference}}

Contexts:
{{.contexts}}

Statements:
{{.statements}}

Return JSON of the form {"verdicts": [{"statement": "...", "correct": 1, "supported": 1}]} with one entry per statement, in order. Use 1 for yes and 0 for no.`)
