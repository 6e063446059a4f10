package sbar

import (
	"fmt"
	"strings"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/providers/llm"
)

const systemPrompt = `You are a clinical documentation specialist creating SBAR (Situation, Background, Assessment, Recommendation) reports for healthcare handoffs. You follow the I-PASS framework and Joint Commission standards.

OUTPUT FORMAT (JSON):
{
  "situation": "Current patient status, chief complaint, vital signs, and immediate concerns",
  "background": "Relevant medical history, medications, allergies, social history",
  "assessment": "Clinical findings, lab results, current condition assessment",
  "recommendation": "Treatment plan, follow-up needs, pending tasks",
  "vitalSigns": {"temperature": 0, "bpSystolic": 0, "bpDiastolic": 0, "heartRate": 0, "respiratoryRate": 0, "oxygenSaturation": 0},
  "medications": [{"name": "...", "dose": "...", "frequency": "...", "route": "..."}],
  "allergies": [{"allergen": "...", "reaction": "...", "severity": "..."}],
  "pendingTasks": ["task 1", "task 2"]
}

GUIDELINES:
- Use clear, professional medical language
- Include specific measurements with units
- Flag critical information (allergies, abnormal vitals, urgent tasks)
- Return ONLY the JSON object, no markdown or explanations outside it`

const initialInstruction = `This is the INITIAL handoff (admission or first documentation). Extract ALL relevant clinical information and provide complete content in every section - this is the baseline for future updates.`

const updateInstructionFmt = `This is an UPDATE handoff. You will receive the previous SBAR report and a new transcription describing changes.
Generate an updated SBAR that:
1. Incorporates new information from the transcription
2. Updates changed values (vitals, labs, status)
3. Uses the literal marker "[Stable - see v%d]" as the entire text of any section that is unchanged from the previous version`

// buildMessages assembles the chat prompt for one generation. The update
// variant supplies every previous section in full so the model can judge
// which sections are stable.
func buildMessages(in GenerateInput) []llm.Message {
	var user strings.Builder

	user.WriteString("PATIENT INFORMATION:\n")
	fmt.Fprintf(&user, "- Name: %s %s\n", in.Patient.FirstName, in.Patient.LastName)
	fmt.Fprintf(&user, "- MRN: %s\n", in.Patient.MRN)
	if in.Patient.DateOfBirth != "" {
		fmt.Fprintf(&user, "- DOB: %s\n", in.Patient.DateOfBirth)
	}
	if in.Patient.Gender != "" {
		fmt.Fprintf(&user, "- Gender: %s\n", in.Patient.Gender)
	}
	if in.Patient.RoomNumber != "" {
		fmt.Fprintf(&user, "- Room: %s\n", in.Patient.RoomNumber)
	}
	if len(in.Patient.KnownAllergies) > 0 {
		fmt.Fprintf(&user, "- Known Allergies: %s\n", strings.Join(in.Patient.KnownAllergies, ", "))
	}
	if len(in.Patient.KnownMedications) > 0 {
		fmt.Fprintf(&user, "- Known Medications: %s\n", strings.Join(in.Patient.KnownMedications, ", "))
	}

	system := systemPrompt
	if in.IsInitial {
		system += "\n\n" + initialInstruction

		fmt.Fprintf(&user, "\nHANDOFF TRANSCRIPTION:\n%s\n", in.Transcript)
		user.WriteString("\nGenerate a comprehensive SBAR report from this initial clinical handoff.")
	} else {
		prev := in.Previous
		system += "\n\n" + fmt.Sprintf(updateInstructionFmt, prev.Version)

		fmt.Fprintf(&user, "\nPREVIOUS SBAR (Version %d):\n---\n", prev.Version)
		fmt.Fprintf(&user, "SITUATION: %s\n\n", prev.Situation)
		fmt.Fprintf(&user, "BACKGROUND: %s\n\n", prev.Background)
		fmt.Fprintf(&user, "ASSESSMENT: %s\n\n", prev.Assessment)
		fmt.Fprintf(&user, "RECOMMENDATION: %s\n---\n", prev.Recommendation)
		fmt.Fprintf(&user, "\nCURRENT HANDOFF TRANSCRIPTION (describing changes):\n%s\n", in.Transcript)
		fmt.Fprintf(&user, "\nGenerate an updated SBAR. Use \"[Stable - see v%d]\" for unchanged sections.", prev.Version)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user.String()},
	}
}

var sectionOrder = []models.SBARSection{
	models.SectionSituation,
	models.SectionBackground,
	models.SectionAssessment,
	models.SectionRecommendation,
}
