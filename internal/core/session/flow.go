package session

import (
	"encoding/json"
	"fmt"

	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/recipe"
)

// Step 食譜建立流程的步驟名稱
type Step string

const (
	StepParsing         Step = "parsing"
	StepBatchConfirm    Step = "batch_confirm"
	StepServingsConfirm Step = "servings_confirm"
	StepReadyToSave     Step = "ready_to_save"
)

// RecipeStage 食譜流程目前所在步驟及其資料，只能是下列四種之一
type RecipeStage interface {
	Step() Step
	sealed()
}

// ParsingStage 剛解析出食材
type ParsingStage struct{}

// BatchConfirmStage 等待使用者確認總量
type BatchConfirmStage struct {
	Estimate  recipe.BatchCalculationResult
	BatchSize recipe.BatchSize
}

// ServingsConfirmStage 總量已確認，等待份數
type ServingsConfirmStage struct {
	BatchSize recipe.BatchSize
}

// ReadyToSaveStage 可計算每份營養並儲存
type ReadyToSaveStage struct {
	BatchSize recipe.BatchSize
	Servings  float64
}

func (ParsingStage) Step() Step         { return StepParsing }
func (BatchConfirmStage) Step() Step    { return StepBatchConfirm }
func (ServingsConfirmStage) Step() Step { return StepServingsConfirm }
func (ReadyToSaveStage) Step() Step     { return StepReadyToSave }

func (ParsingStage) sealed()         {}
func (BatchConfirmStage) sealed()    {}
func (ServingsConfirmStage) sealed() {}
func (ReadyToSaveStage) sealed()     {}

// RecipeFlow 進行中的食譜建立流程
type RecipeFlow struct {
	RecipeName     string
	Ingredients    []recipe.Ingredient
	TotalNutrition nutrition.NutritionData
	Fingerprint    string

	stage RecipeStage
}

// NewRecipeFlow 以解析結果開始流程
func NewRecipeFlow(name string, ingredients []recipe.Ingredient, total nutrition.NutritionData) *RecipeFlow {
	return &RecipeFlow{
		RecipeName:     name,
		Ingredients:    ingredients,
		TotalNutrition: total,
		Fingerprint:    recipe.Fingerprint(ingredients),
		stage:          ParsingStage{},
	}
}

// Stage 目前步驟
func (f *RecipeFlow) Stage() RecipeStage {
	if f.stage == nil {
		return ParsingStage{}
	}
	return f.stage
}

// Step 目前步驟名稱
func (f *RecipeFlow) Step() Step {
	return f.Stage().Step()
}

// ProposeBatch parsing → batch_confirm
func (f *RecipeFlow) ProposeBatch(estimate recipe.BatchCalculationResult) error {
	if _, ok := f.Stage().(ParsingStage); !ok {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, f.Step(), StepBatchConfirm)
	}
	f.stage = BatchConfirmStage{Estimate: estimate, BatchSize: recipe.BatchSizeFromResult(estimate)}
	return nil
}

// CorrectBatch batch_confirm → batch_confirm，使用者修正總量
func (f *RecipeFlow) CorrectBatch(size recipe.BatchSize) error {
	st, ok := f.Stage().(BatchConfirmStage)
	if !ok {
		return fmt.Errorf("%w: correct batch at %s", ErrIllegalTransition, f.Step())
	}
	st.BatchSize = size
	f.stage = st
	return nil
}

// ConfirmBatch batch_confirm → servings_confirm
func (f *RecipeFlow) ConfirmBatch() error {
	st, ok := f.Stage().(BatchConfirmStage)
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, f.Step(), StepServingsConfirm)
	}
	f.stage = ServingsConfirmStage{BatchSize: st.BatchSize}
	return nil
}

// SetServings servings_confirm → ready_to_save
func (f *RecipeFlow) SetServings(servings float64) error {
	st, ok := f.Stage().(ServingsConfirmStage)
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, f.Step(), StepReadyToSave)
	}
	if servings <= 0 {
		return fmt.Errorf("servings must be positive, got %g", servings)
	}
	f.stage = ReadyToSaveStage{BatchSize: st.BatchSize, Servings: servings}
	return nil
}

// ReviseServings ready_to_save → ready_to_save，儲存前修正份數
func (f *RecipeFlow) ReviseServings(servings float64) error {
	st, ok := f.Stage().(ReadyToSaveStage)
	if !ok {
		return fmt.Errorf("%w: revise servings at %s", ErrIllegalTransition, f.Step())
	}
	if servings <= 0 {
		return fmt.Errorf("servings must be positive, got %g", servings)
	}
	st.Servings = servings
	f.stage = st
	return nil
}

// PerServing 每份營養；尚未到 ready_to_save 時 ok 為 false
func (f *RecipeFlow) PerServing() (nutrition.NutritionData, bool) {
	st, ok := f.Stage().(ReadyToSaveStage)
	if !ok || st.Servings <= 0 {
		return nutrition.NutritionData{}, false
	}
	per := f.TotalNutrition.Scale(1 / st.Servings).Rounded()
	per.FoodName = f.RecipeName
	per.ServingSize = fmt.Sprintf("1 of %g servings", st.Servings)
	return per, true
}

// Clone 深拷貝
func (f *RecipeFlow) Clone() *RecipeFlow {
	out := *f
	out.Ingredients = make([]recipe.Ingredient, len(f.Ingredients))
	for i, ing := range f.Ingredients {
		if ing.Quantity != nil {
			ing.Quantity = recipe.Qty(*ing.Quantity)
		}
		out.Ingredients[i] = ing
	}
	return &out
}

type recipeFlowJSON struct {
	Step           Step                           `json:"step"`
	RecipeName     string                         `json:"recipeName"`
	Ingredients    []recipe.Ingredient            `json:"ingredients"`
	TotalNutrition nutrition.NutritionData        `json:"totalNutrition"`
	Fingerprint    string                         `json:"fingerprint,omitempty"`
	Estimate       *recipe.BatchCalculationResult `json:"estimate,omitempty"`
	BatchSize      *recipe.BatchSize              `json:"batchSize,omitempty"`
	Servings       *float64                       `json:"servings,omitempty"`
}

// MarshalJSON {"step": "...", ...步驟資料}
func (f RecipeFlow) MarshalJSON() ([]byte, error) {
	out := recipeFlowJSON{
		Step:           f.Step(),
		RecipeName:     f.RecipeName,
		Ingredients:    f.Ingredients,
		TotalNutrition: f.TotalNutrition,
		Fingerprint:    f.Fingerprint,
	}
	switch st := f.Stage().(type) {
	case BatchConfirmStage:
		out.Estimate = &st.Estimate
		out.BatchSize = &st.BatchSize
	case ServingsConfirmStage:
		out.BatchSize = &st.BatchSize
	case ReadyToSaveStage:
		out.BatchSize = &st.BatchSize
		out.Servings = &st.Servings
	}
	return json.Marshal(out)
}

// UnmarshalJSON 拒絕不屬於宣告步驟的資料
func (f *RecipeFlow) UnmarshalJSON(data []byte) error {
	var in recipeFlowJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	var stage RecipeStage
	switch in.Step {
	case StepParsing, "":
		if in.Estimate != nil || in.BatchSize != nil || in.Servings != nil {
			return fmt.Errorf("%w: parsing carries batch data", ErrInvalidStage)
		}
		stage = ParsingStage{}
	case StepBatchConfirm:
		if in.Estimate == nil || in.BatchSize == nil || in.Servings != nil {
			return fmt.Errorf("%w: batch_confirm needs estimate and batchSize only", ErrInvalidStage)
		}
		stage = BatchConfirmStage{Estimate: *in.Estimate, BatchSize: *in.BatchSize}
	case StepServingsConfirm:
		if in.BatchSize == nil || in.Estimate != nil || in.Servings != nil {
			return fmt.Errorf("%w: servings_confirm needs batchSize only", ErrInvalidStage)
		}
		stage = ServingsConfirmStage{BatchSize: *in.BatchSize}
	case StepReadyToSave:
		if in.BatchSize == nil || in.Servings == nil || *in.Servings <= 0 || in.Estimate != nil {
			return fmt.Errorf("%w: ready_to_save needs batchSize and positive servings", ErrInvalidStage)
		}
		stage = ReadyToSaveStage{BatchSize: *in.BatchSize, Servings: *in.Servings}
	default:
		return fmt.Errorf("%w: unknown step %q", ErrInvalidStage, in.Step)
	}

	*f = RecipeFlow{
		RecipeName:     in.RecipeName,
		Ingredients:    in.Ingredients,
		TotalNutrition: in.TotalNutrition,
		Fingerprint:    in.Fingerprint,
		stage:          stage,
	}
	if f.Fingerprint == "" {
		f.Fingerprint = recipe.Fingerprint(f.Ingredients)
	}
	return nil
}
