package prompts

// StandaloneQueryPrompt rewrites a user question into a search query that
// names the product.
var StandaloneQueryPrompt = NewPromptTemplate(
	`You are given a user question and a product name. Convert the question into a concise standalone search-style query referencing the product.

User question: "{{.query}}"
Product name: "{{.product}}"

Return only the standalone query in 1 line.`)

var SubQueriesPrompt = NewPromptTemplate(
	`Take the standalone query: "{{.query}}" and generate {{.count}} focused sub-queries that cover different aspects of the main question. Return them as a numbered list, one per line.`)

var HypotheticalAnswerPrompt = NewPromptTemplate(
	`Produce a short hypothetical answer for this sub-query that an expert might expect to find in relevant posts. Keep it concise (2-4 sentences).

Sub-query: "{{.query}}"`)

// ProductAnswerPrompt is shared by both retrieval variants so that only the
// context differs between them.
var ProductAnswerPrompt = NewPromptTemplate(
	`Product: {{.product}}
Product description: {{.description}}

Context (posts about this product):

{{.context}}
User question: {{.query}}

Using ONLY the context above, produce a thorough and actionable answer to the user's question. Cite sources inline (give the Source URL next to the point you extract). Keep the answer factual and avoid inventing claims not found in the posts.`)
