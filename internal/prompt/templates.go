package prompt

// Template names.
const (
	TemplateStandard   = "standard"
	TemplateEvaluation = "evaluation"
	TemplateSummary    = "summary"
)

// NoDocumentsContext replaces the context when retrieval found nothing.
const NoDocumentsContext = "No relevant documents found."

// Template is a system instruction plus a user message with {query} and
// {context} placeholders.
type Template struct {
	Name   string
	System string
	User   string
}

var templates = map[string]Template{
	TemplateStandard: {
		Name: TemplateStandard,
		System: "You are an experienced analyst who answers questions about the provided documents " +
			"precisely and professionally.\n" +
			"Use only the information in the context.\n" +
			"If the context is insufficient, say so plainly. Do not invent facts.\n" +
			"Cite your sources by giving the source number in square brackets (e.g. [Source 1]).",
		User: "Context:\n" +
			"{context}\n\n" +
			"Question:\n" +
			"{query}\n\n" +
			"Answer the question based on the context above and name the sources you used.",
	},
	TemplateEvaluation: {
		Name: TemplateEvaluation,
		System: "You are a reviewer who assesses whether specific criteria are met based on the provided documents.\n" +
			"Answer factually and objectively, and back every statement with sources from the context " +
			"using square brackets (e.g. [Source 2]).",
		User: "Context:\n" +
			"{context}\n\n" +
			"Criterion to assess:\n" +
			"{query}\n\n" +
			"Assess whether the criterion above is met based on the context.\n" +
			"Structure your answer as:\n" +
			"- Assessment: [Met / Not met / Partially met / Cannot be assessed]\n" +
			"- Reasoning: [detailed reasoning with source references]\n" +
			"- Relevant passages: [quotes from the context]",
	},
	TemplateSummary: {
		Name: TemplateSummary,
		System: "You are a document analysis assistant. Summarize complex documents concisely and in a structured way.\n" +
			"Reference the sources you draw on in square brackets (e.g. [Source 1]).",
		User: "Context:\n" +
			"{context}\n\n" +
			"Task:\n" +
			"Summarize the key points of the provided documents.\n" +
			"Focus on:\n" +
			"- main goals and purpose\n" +
			"- important requirements and criteria\n" +
			"- deadlines, dates and financial aspects (if present)\n" +
			"- important metadata\n\n" +
			"Additional focus: {query}",
	},
}

// Names returns the template names in a stable order.
func Names() []string {
	return []string{TemplateStandard, TemplateEvaluation, TemplateSummary}
}

// Lookup returns the named template.
func Lookup(name string) (Template, bool) {
	t, ok := templates[name]
	return t, ok
}
