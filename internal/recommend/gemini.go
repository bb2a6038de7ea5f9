package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// systemPrompt fixes the generator's persona and constraints. Additive
// package elements (zinc, barium, boron, calcium, molybdenum, magnesium,
// phosphorus) must not trigger component or oil change suggestions.
const systemPrompt = "Eres un ingeniero mecánico, especialista en equipos mineros y debes realizar " +
	"diagnósticos precisos sobre las medidas de un equipo, entregando comentarios breves respecto a " +
	"los análisis de aceite realizados y recomendaciones concretas de mantención. Considera que al " +
	"haber presencia de Zinc, Bario, Boro, Calcio, Molibdeno, Magnesio o Fósforo en el aceite no se " +
	"debe sugerir cambio de componentes o de aceite. Tus respuestas deben ser de 150 palabras o menos."

// fewShot anchors the response style with worked diagnoses.
var fewShot = []struct {
	user  string
	model string
}{
	{
		user: "Analiza una muestra para el siguiente equipo:\nComponente: aceite motor diesel\n" +
			"Los valores de la muestra son:\n" +
			"elemento  valor  limite transgredido  valor limite\n" +
			"contenido de agua  8.3  limite superior condenatorio  0.3\n" +
			"viscosidad cinematica 40c  144.6  limite superior condenatorio  138.0",
		model: "Se aprecian niveles de desgaste y contaminación externa entre límites permisibles, " +
			"sin embargo, se detecta contenido de agua 8,3% en volumen de muestra. Grado de viscosidad " +
			"sobre límite superior condenatorio 144,6 por posibles rellenos con lubricante de ISO VG mayor. " +
			"Se sugiere cambio de lubricante y mantener seguimiento riguroso cada 125 horas, para " +
			"evidenciar alzas abruptas de sodio y potasio por eventual traspaso de refrigerante.",
	},
	{
		user: "Analiza una muestra para el siguiente equipo:\nComponente: motor diesel\nMáquina: camion\n" +
			"Los valores de la muestra son:\n" +
			"elemento  valor  limite transgredido  valor limite\n" +
			"fierro  31.1  limite superior marginal  30.0\n" +
			"cobre  267.7  limite superior condenatorio  15.0\n" +
			"silicio  30.7  limite superior condenatorio  17.0",
		model: "Se detecta concentración de metales de desgaste por Fierro 31.1 ppm y Cobre 267.7 ppm, " +
			"evidenciando posible abrasión excesiva en cojinetes y bujes de turbo. Silicio 30.7 ppm señala " +
			"ingesta excesiva de polvo ambiental. Se recomienda priorizar cambio de lubricante y elementos " +
			"filtrantes, evaluar presiones en sistema de lubricación y mantener seguimiento riguroso cada 50 hrs.",
	},
}

// GeminiGenerator implements Generator over the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiGenerator dials the Gemini API and configures the model with the
// diagnosis persona, temperature and output budget.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string, temperature float64, maxTokens int) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client init failed: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	model.SetTemperature(float32(temperature))
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate produces one recommendation. A fresh chat session is built per
// call: sessions are not safe for the orchestrator's concurrent workers.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	session := g.model.StartChat()
	for _, shot := range fewShot {
		session.History = append(session.History,
			&genai.Content{Role: "user", Parts: []genai.Part{genai.Text(shot.user)}},
			&genai.Content{Role: "model", Parts: []genai.Part{genai.Text(shot.model)}},
		)
	}

	resp, err := session.SendMessage(ctx, genai.Text(BuildPrompt(req)))
	if err != nil {
		return "", fmt.Errorf("failed to generate recommendation: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no content returned from generator")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("response part is not text, received %T", resp.Candidates[0].Content.Parts[0])
	}
	return strings.TrimSpace(string(text)), nil
}

// Close releases the underlying API client.
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}
