package menu

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"tavola/db"
	"tavola/models"
	"tavola/notify"
	"tavola/rdx"
	"tavola/utils"
)

const cacheTTL = 5 * time.Minute

// Handlers is the operator menu CRUD surface. Every write invalidates the
// category cache and pushes a menu_updated event to the admin channel.
type Handlers struct {
	Notifier *notify.Notifier
}

func NewHandlers(notifier *notify.Notifier) *Handlers {
	return &Handlers{Notifier: notifier}
}

type itemRequest struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	Price           float64 `json:"price"`
	IsAvailable     *bool   `json:"isAvailable"`
	IsVeg           bool    `json:"isVeg"`
	PreparationTime int     `json:"preparationTime"`
}

func (req *itemRequest) validate() string {
	if len(req.Name) < 1 || len(req.Name) > 100 {
		return "name must be 1-100 characters"
	}
	if req.Price < 0 {
		return "price must not be negative"
	}
	if req.Category == "" {
		return "category is required"
	}
	return ""
}

// Categories serves the distinct category list, cached in redis.
func (h *Handlers) Categories(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if cached, err := rdx.RdxGet("menu:categories"); err == nil && cached != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(cached))
		return
	}

	raw, err := db.MenuCollection.Distinct(r.Context(), "category", bson.M{"isavailable": true})
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	categories := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			categories = append(categories, s)
		}
	}

	body, _ := json.Marshal(utils.M{"categories": categories})
	if err := rdx.RdxSet("menu:categories", string(body), cacheTTL); err != nil {
		log.Printf("Menu: cache categories: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter := bson.M{}
	if cat := r.URL.Query().Get("category"); cat != "" {
		filter["category"] = cat
	}

	cur, err := db.MenuCollection.Find(r.Context(), filter)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	defer cur.Close(r.Context())

	var items []models.MenuItem
	if err := cur.All(r.Context(), &items); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "decode failed")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"items": items})
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var item models.MenuItem
	err := db.MenuCollection.FindOne(r.Context(), bson.M{"itemid": ps.ByName("itemid")}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondWithError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"item": item})
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}
	item := models.MenuItem{
		ItemID:          utils.NewID(),
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		Price:           req.Price,
		IsAvailable:     available,
		IsVeg:           req.IsVeg,
		PreparationTime: req.PreparationTime,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if _, err := db.MenuCollection.InsertOne(r.Context(), item); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "insert failed")
		return
	}

	h.invalidateCache()
	if h.Notifier != nil {
		h.Notifier.MenuUpdated("created", &item)
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"item": item})
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	itemID := ps.ByName("itemid")

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	set := bson.M{
		"name":            req.Name,
		"description":     req.Description,
		"category":        req.Category,
		"price":           req.Price,
		"isveg":           req.IsVeg,
		"preparationtime": req.PreparationTime,
		"updatedat":       time.Now(),
	}
	if req.IsAvailable != nil {
		set["isavailable"] = *req.IsAvailable
	}

	res, err := db.MenuCollection.UpdateOne(r.Context(), bson.M{"itemid": itemID}, bson.M{"$set": set})
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "update failed")
		return
	}
	if res.MatchedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "item not found")
		return
	}

	var item models.MenuItem
	if err := db.MenuCollection.FindOne(r.Context(), bson.M{"itemid": itemID}).Decode(&item); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	h.invalidateCache()
	if h.Notifier != nil {
		h.Notifier.MenuUpdated("updated", &item)
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"item": item})
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	itemID := ps.ByName("itemid")

	var item models.MenuItem
	err := db.MenuCollection.FindOneAndDelete(r.Context(), bson.M{"itemid": itemID}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondWithError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	h.invalidateCache()
	if h.Notifier != nil {
		h.Notifier.MenuUpdated("deleted", &item)
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"ok": true})
}

func (h *Handlers) invalidateCache() {
	if err := rdx.RdxDel("menu:categories"); err != nil {
		log.Printf("Menu: cache invalidation: %v", err)
	}
}
