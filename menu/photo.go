package menu

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"tavola/db"
	"tavola/models"
	"tavola/utils"
)

const picDir = "./static/menupic"

// UploadPhoto stores an item photo and a 200px thumbnail for list views.
func (h *Handlers) UploadPhoto(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	itemID := ps.ByName("itemid")

	var item models.MenuItem
	err := db.MenuCollection.FindOne(r.Context(), bson.M{"itemid": itemID}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondWithError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer file.Close()

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "unsupported image")
		return
	}

	if err := os.MkdirAll(picDir, 0o755); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	imagePath := filepath.Join(picDir, itemID+".jpg")
	thumbPath := filepath.Join(picDir, itemID+"_thumb.jpg")
	if err := imaging.Save(img, imagePath, imaging.JPEGQuality(85)); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "save failed")
		return
	}
	thumb := imaging.Resize(img, 200, 0, imaging.Lanczos)
	if err := imaging.Save(thumb, thumbPath, imaging.JPEGQuality(80)); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "save failed")
		return
	}

	image := "/menupic/" + itemID + ".jpg"
	thumbURL := "/menupic/" + itemID + "_thumb.jpg"
	_, err = db.MenuCollection.UpdateOne(r.Context(), bson.M{"itemid": itemID},
		bson.M{"$set": bson.M{"image": image, "thumb": thumbURL, "updatedat": time.Now()}})
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "update failed")
		return
	}

	item.Image = image
	item.Thumb = thumbURL
	if h.Notifier != nil {
		h.Notifier.MenuUpdated("updated", &item)
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"image": image, "thumb": thumbURL})
}
