package classifier

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are an assistant that files accounting documents. You read one document and choose the single folder it belongs in."

// buildPrompt lists the destination folders, the fixed rules and the optional
// user rules, then asks for a JSON answer with a labelled-line fallback.
func buildPrompt(fileName string, folders []string, otherName, extraRules string) string {
	var b strings.Builder
	b.WriteString("Analyze the attached accounting document and choose the folder it should be filed in.\n\n")
	fmt.Fprintf(&b, "File name: %s\n", fileName)
	fmt.Fprintf(&b, "Available folders: %s\n\n", strings.Join(append(append([]string{}, folders...), otherName), ", "))

	b.WriteString("Classification rules:\n")
	b.WriteString("1. File invoices, receipts, contracts, payslips, tax documents, bank statements and similar accounting material into the matching folder.\n")
	fmt.Fprintf(&b, "2. If the document cannot be classified with confidence, choose %q.\n", otherName)
	b.WriteString("3. Answer with exactly one folder name from the list.\n\n")

	if extraRules != "" {
		fmt.Fprintf(&b, "Additional classification rules:\n%s\n\n", extraRules)
	}

	b.WriteString("Answer format:\n")
	b.WriteString(`Return only a JSON object: {"category": "<folder name>", "confidence": <number between 0 and 1>, "reason": "<short explanation>"}` + "\n")
	b.WriteString("If you cannot produce JSON, answer with two lines instead:\n")
	b.WriteString("result: <folder name>\n")
	b.WriteString("reason: <short explanation>\n\n")
	b.WriteString("Example:\n")
	b.WriteString(`{"category": "Invoices", "confidence": 0.92, "reason": "The document is titled Invoice and lists an amount due and a payment deadline."}`)
	return b.String()
}
