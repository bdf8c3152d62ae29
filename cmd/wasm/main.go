//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"
	"time"

	"incidentkb/internal/adapter/embedding"
	"incidentkb/internal/adapter/index"
	"incidentkb/internal/adapter/memstore"
	"incidentkb/internal/domain"
	"incidentkb/internal/usecase"
)

const dimension = 256

var (
	memory *usecase.VectorMemory
	tools  *usecase.IncidentTools
	ingest *usecase.IngestUseCase
)

func init() {
	reset()
}

// reset swaps in an empty memory backed by the offline hashing embedder.
func reset() {
	emb := embedding.NewHashingEmbedder(dimension)
	idx, _ := index.NewFlatL2Index(dimension)
	memory, _ = usecase.NewVectorMemory(emb, memstore.NewMemoryStore(), idx)
	tools = usecase.NewIncidentTools(memory)
	ingest = usecase.NewIngestUseCase(memory, nil, nil, nil)
}

func main() {
	c := make(chan struct{})

	js.Global().Set("kbIngest", js.FuncOf(ingestIncident))
	js.Global().Set("kbSearch", js.FuncOf(callTool(usecase.ToolSearchIncidents)))
	js.Global().Set("kbSummarize", js.FuncOf(callTool(usecase.ToolSummarizeIncident)))
	js.Global().Set("kbLink", js.FuncOf(callTool(usecase.ToolLinkIncidents)))
	js.Global().Set("kbClear", js.FuncOf(clearMemory))
	js.Global().Set("kbStats", js.FuncOf(getStats))

	<-c
}

func ingestIncident(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return makeError("usage: kbIngest(source, url, content)")
	}

	doc, err := ingest.Ingest(context.Background(), usecase.IngestRequest{
		Source:    domain.Source(args[0].String()),
		URL:       args[1].String(),
		Content:   args[2].String(),
		Timestamp: time.Now(),
	})
	if err != nil {
		return makeError("ingest failed: " + err.Error())
	}

	return makeResult(map[string]interface{}{
		"success": true,
		"id":      doc.ID,
		"source":  doc.Source,
	})
}

func callTool(name string) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if len(args) < 1 {
			return makeError("usage: " + name + "(input)")
		}
		tool, _ := usecase.FindTool(tools.Tools(), name)
		out, err := tool.Call(context.Background(), args[0].String())
		if err != nil {
			return makeError(name + " failed: " + err.Error())
		}
		return makeResult(map[string]interface{}{
			"tool":   name,
			"output": out,
		})
	}
}

func clearMemory(this js.Value, args []js.Value) interface{} {
	reset()
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	docs := memory.Documents()
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}

	return makeResult(map[string]interface{}{
		"incidents": len(docs),
		"dimension": memory.Dimension(),
		"ids":       ids,
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
