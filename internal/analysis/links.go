package analysis

import "regexp"

var (
	githubRE      = regexp.MustCompile(`https?://(?:www\.)?github\.com/[\w\-]+/[\w\-]+`)
	huggingfaceRE = regexp.MustCompile(`https?://(?:www\.)?huggingface\.co/[\w\-]+`)
)

// ResourceLinks are code and model artifacts mentioned in the paper.
type ResourceLinks struct {
	GitHub      string `json:"github,omitempty"`
	HuggingFace string `json:"huggingface,omitempty"`
}

// Empty reports whether no links were found.
func (r ResourceLinks) Empty() bool {
	return r.GitHub == "" && r.HuggingFace == ""
}

// extractResourceLinks scans the paper text for GitHub and Hugging
// Face URLs, keeping the first match of each.
func extractResourceLinks(text string) ResourceLinks {
	var links ResourceLinks
	if m := githubRE.FindString(text); m != "" {
		links.GitHub = m
	}
	if m := huggingfaceRE.FindString(text); m != "" {
		links.HuggingFace = m
	}
	return links
}
