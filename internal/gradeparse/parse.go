package gradeparse

// Parse never fails, a page nothing could be read from gives an empty Result
// with Strategy set to StrategyNone.
//
// A JSON labelled body that is not valid JSON is parsed as html, some deployments
// answer the JSON endpoint with an html page.
func Parse(raw Raw) Result {
	if raw.Format == FormatJSON {
		root, err := decodeJSON(raw.Body)
		if err == nil {
			records := ParseJSON(root)
			if len(records) == 0 {
				return Result{Strategy: StrategyNone}
			}
			return Result{Records: records, Strategy: StrategyJSON}
		}
	}
	return ParseHTML(raw.Body, DefaultStrategies)
}
