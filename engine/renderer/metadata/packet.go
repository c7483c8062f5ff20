package metadata

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/portalis/engine/containers"
)

/**
 * @brief Handles are typed by the GPU object they name, so a mesh handle
 * can never be passed where a material is expected.
 */
type (
	MaterialHandle = containers.Handle[MaterialTag]
	MeshHandle     = containers.Handle[MeshTag]
	TextureHandle  = containers.Handle[TextureTag]
)

// Tag types only parameterize handles.
type (
	MaterialTag struct{}
	MeshTag     struct{}
	TextureTag  struct{}
)

/** @brief A single object in the scene. */
type Object struct {
	/** @brief How to draw this object. */
	Material MaterialHandle
	/** @brief Vertex and index data of the object. */
	Mesh MeshHandle
	/** @brief Optional texture. The zero handle draws with the built-in white texture. */
	Texture TextureHandle
	/** @brief Model matrix applied to every vertex of the object. */
	Transform mgl32.Mat4
}

/** @brief One side of the linked portal pair. */
type Portal struct {
	/** @brief The portal quad. */
	Mesh MeshHandle
	/** @brief Orientation and position of the portal plane in world space. */
	Affine mgl32.Mat4
}

const (
	PortalOrange = 0
	PortalBlue   = 1
)

/** @brief Everything needed to render one frame besides the camera. */
type FramePacket struct {
	Objects []Object
	/** @brief Orange portal first, blue second. */
	Portals [2]Portal
	/** @brief Accumulated portal transform. The regular camera is view·Base⁻¹. */
	Base mgl32.Mat4
	/** @brief Set when the host has no frame to show; rendering returns before any GPU work. */
	Skip bool
}

func NewFramePacket() *FramePacket {
	return &FramePacket{Base: mgl32.Ident4()}
}

/** @brief One projection·view matrix per rendered view (1, or 2 for stereo). */
type Camera struct {
	Views []mgl32.Mat4
}

func NewCamera(views ...mgl32.Mat4) Camera {
	return Camera{Views: views}
}

/** @brief Selects which camera matrix the vertex shader applies. */
type CameraRole uint32

const (
	CameraRegular CameraRole = iota
	CameraOrangePortal
	CameraBluePortal
	CameraRoleCount
)

// CameraRoleForPortal is the role used to draw the scene seen through portal i.
func CameraRoleForPortal(i int) CameraRole {
	return CameraOrangePortal + CameraRole(i)
}

// CameraSlot is the index of the (role, view) matrix in the camera uniform buffer.
// Roles are laid out one after the other, each with all views.
func CameraSlot(role CameraRole, view, views uint32) uint32 {
	return uint32(role)*views + view
}
